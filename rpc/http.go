package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mpachain/core"
	"mpachain/observability"
	"mpachain/rpc/modules"
)

const (
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	requestIDHeader        = "X-Request-ID"
	tracingOperation       = "mpad"
)

// writeMethods mutate the chain. They require the bearer token when one is
// configured and are rate limited per client.
var writeMethods = map[string]bool{
	"chain_sendTransaction":    true,
	"chain_sendRawTransaction": true,
	"mpa_deployFactory":        true,
	"mpa_create":               true,
	"mpa_freeze":               true,
	"mpa_unlock":               true,
	"mpa_distribute":           true,
}

// ServerConfig tunes the JSON-RPC server.
type ServerConfig struct {
	AuthToken    string
	RateLimit    float64 // write requests per second per client; zero disables
	RateBurst    int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Index        modules.EventIndex
	Logger       *slog.Logger
}

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	limiter *clientLimiter
	chain   *modules.ChainModule
	mpa     *modules.MPAModule

	httpServer *http.Server
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger,
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		chain:   modules.NewChainModule(node),
		mpa:     modules.NewMPAModule(node, cfg.Index),
	}
	// Built up front so Shutdown always has a server to stop, even when it
	// races ahead of Serve.
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, tracingOperation)
}

// Serve accepts connections on listener until Shutdown is called. Serving
// after Shutdown closes listener and returns nil immediately.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")

	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	module := moduleOf(req.Method)
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
		attribute.String("mpad.request_id", requestID),
	)
	start := time.Now()
	if writeMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			observability.ModuleMetrics().Observe(module, req.Method, authErr.Code, time.Since(start))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		source := clientSource(r)
		if !s.limiter.Allow(source) {
			observability.ModuleMetrics().RecordThrottle(module, "rate_limit")
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
			return
		}
	}

	result, modErr := s.dispatch(r, req)
	code := 0
	if modErr != nil {
		code = modErr.Code
	}
	duration := time.Since(start)
	observability.ModuleMetrics().Observe(module, req.Method, code, duration)

	logAttrs := []any{
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.Duration("duration", duration),
	}
	if modErr != nil {
		span.SetStatus(codes.Error, modErr.Message)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", modErr.Code))
		s.logger.Warn("rpc request failed", append(logAttrs, slog.Int("code", modErr.Code), slog.String("error", modErr.Message))...)
		writeModuleError(w, req.ID, modErr)
		return
	}
	s.logger.Debug("rpc request", logAttrs...)
	writeResult(w, req.ID, result)
}

func moduleOf(method string) string {
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		return method[:idx]
	}
	return method
}

// firstParam returns the single parameter object, or nil when none was sent.
func firstParam(req *RPCRequest) (json.RawMessage, *modules.ModuleError) {
	switch len(req.Params) {
	case 0:
		return nil, nil
	case 1:
		return req.Params[0], nil
	default:
		return nil, &modules.ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "too many parameters"}
	}
}

func (s *Server) dispatch(r *http.Request, req *RPCRequest) (interface{}, *modules.ModuleError) {
	raw, modErr := firstParam(req)
	if modErr != nil {
		return nil, modErr
	}
	switch req.Method {
	case "chain_accounts":
		return s.chain.Accounts()
	case "chain_chainId":
		return s.chain.ChainID()
	case "chain_blockNumber":
		return s.chain.BlockNumber()
	case "chain_getBalance":
		account, modErr := s.chain.GetAccount(raw)
		if modErr != nil {
			return nil, modErr
		}
		return account.Balance, nil
	case "chain_getNonce":
		account, modErr := s.chain.GetAccount(raw)
		if modErr != nil {
			return nil, modErr
		}
		return account.Nonce, nil
	case "chain_getAccount":
		return s.chain.GetAccount(raw)
	case "chain_getBlock":
		return s.chain.GetBlock(raw)
	case "chain_getReceipt":
		return s.chain.GetReceipt(raw)
	case "chain_sendTransaction":
		return s.chain.SendTransaction(raw)
	case "chain_sendRawTransaction":
		return s.chain.SendRawTransaction(raw)
	case "mpa_deployFactory":
		return s.mpa.DeployFactory(raw)
	case "mpa_create":
		return s.mpa.Create(raw)
	case "mpa_ownedMPAs":
		return s.mpa.OwnedMPAs(raw)
	case "mpa_get":
		return s.mpa.Get(raw)
	case "mpa_getFactory":
		return s.mpa.GetFactory(raw)
	case "mpa_freeze":
		return s.mpa.Freeze(raw)
	case "mpa_unlock":
		return s.mpa.Unlock(raw)
	case "mpa_distribute":
		return s.mpa.Distribute(raw)
	case "mpa_events":
		return s.mpa.Events(r.Context(), raw)
	default:
		return nil, &modules.ModuleError{HTTPStatus: http.StatusNotFound, Code: codeMethodNotFound, Message: "method not found", Data: req.Method}
	}
}

// requireAuth enforces the bearer token on write methods. An empty token
// leaves the node open, which suits local development chains.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
