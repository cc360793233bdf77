package passphrase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("MPA_TEST_PASS", "hunter2")
	src := NewSource("MPA_TEST_PASS")
	src.prompt = func(string) (string, error) {
		t.Fatal("prompt should not be used when the env var is set")
		return "", nil
	}
	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("MPA_TEST_PASS", "   ")
	_, err := NewSource("MPA_TEST_PASS").Get()
	require.ErrorContains(t, err, "MPA_TEST_PASS is set but empty")
}

func TestSourcePromptsOnce(t *testing.T) {
	calls := 0
	src := NewLabelledSource("", "wallet passphrase")
	src.prompt = func(label string) (string, error) {
		calls++
		require.Equal(t, "wallet passphrase", label)
		return "secret", nil
	}
	for i := 0; i < 3; i++ {
		got, err := src.Get()
		require.NoError(t, err)
		require.Equal(t, "secret", got)
	}
	require.Equal(t, 1, calls)
}

func TestSourcePromptFailures(t *testing.T) {
	src := NewSource("MPA_TEST_UNSET_PASS")
	src.prompt = func(string) (string, error) { return "", errors.New("no tty") }
	_, err := src.Get()
	require.ErrorContains(t, err, "set MPA_TEST_UNSET_PASS")

	blank := NewSource("")
	blank.prompt = func(string) (string, error) { return " ", nil }
	_, err = blank.Get()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestStatic(t *testing.T) {
	got, err := Static("pw").Get()
	require.NoError(t, err)
	require.Equal(t, "pw", got)

	_, err = Static("").Get()
	require.ErrorIs(t, err, ErrEmpty)
}
