package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrEmpty is returned when the resolved passphrase is blank.
var ErrEmpty = errors.New("passphrase cannot be empty")

// Source resolves a keystore passphrase once, from an environment variable or
// an interactive prompt, and caches the result.
type Source struct {
	envVar string
	label  string

	// prompt reads a secret from the terminal. Tests replace it.
	prompt func(label string) (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// prompting for the account keystore passphrase on stderr.
func NewSource(envVar string) *Source {
	return NewLabelledSource(envVar, "keystore passphrase")
}

// NewLabelledSource is NewSource with a custom prompt label.
func NewLabelledSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "passphrase"
	}
	return &Source{
		envVar: strings.TrimSpace(envVar),
		label:  label,
		prompt: terminalPrompt(os.Stdin, os.Stderr),
	}
}

// Static returns a source that always yields value. Used for scripted runs.
func Static(value string) *Source {
	s := &Source{}
	s.once.Do(func() {
		if strings.TrimSpace(value) == "" {
			s.err = ErrEmpty
			return
		}
		s.value = value
	})
	return s
}

// Get returns the cached passphrase or resolves it on the first call.
// An env var set to the exact value wins over prompting.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		value, err := s.prompt(s.label)
		if err != nil {
			if s.envVar != "" {
				s.err = fmt.Errorf("%w; set %s or run interactively", err, s.envVar)
			} else {
				s.err = err
			}
			return
		}
		if strings.TrimSpace(value) == "" {
			s.err = fmt.Errorf("%s: %w", s.label, ErrEmpty)
			return
		}
		s.value = value
	})
	return s.value, s.err
}

func terminalPrompt(in *os.File, out io.Writer) func(string) (string, error) {
	return func(label string) (string, error) {
		fd := int(in.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("%s required and no terminal available", label)
		}
		fmt.Fprintf(out, "Enter %s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", label, err)
		}
		return string(raw), nil
	}
}
