package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"donorpay/native/rewards"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the reward engine over JSON-RPC 2.0. Privileged methods
// require the configured bearer token; the operator wallet is the caller for
// them.
type Server struct {
	engine    *rewards.Engine
	authToken string
	operator  string
	handler   http.Handler
}

// ServerConfig bundles the server dependencies.
type ServerConfig struct {
	Engine *rewards.Engine
	// AuthToken guards privileged methods. Falls back to DONORPAY_RPC_TOKEN.
	AuthToken string
	// Operator is the wallet privileged calls act as.
	Operator string
	// RateLimitPerMinute throttles RPC calls per client. Zero disables
	// throttling.
	RateLimitPerMinute float64
	// RateLimitBurst is the per-client burst allowance when throttling.
	RateLimitBurst int
}

// NewServer constructs the RPC server and its router.
func NewServer(cfg ServerConfig) *Server {
	token := strings.TrimSpace(cfg.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("DONORPAY_RPC_TOKEN"))
	}
	s := &Server{
		engine:    cfg.Engine,
		authToken: token,
		operator:  strings.TrimSpace(cfg.Operator),
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if cfg.RateLimitPerMinute > 0 {
		limiter := newClientLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
		r.With(limiter.middleware).Post("/", s.handle)
	} else {
		r.Post("/", s.handle)
	}
	s.handler = otelhttp.NewHandler(r, "donorpay-rpc")
	return s
}

// Handler returns the HTTP handler for mounting or testing.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves the RPC API on the address until the listener fails.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version")
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required")
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found: "+req.Method)
		return
	}
	if handler.privileged && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "bearer token required")
		return
	}
	handler.fn(w, r, &req)
}

type methodHandler struct {
	privileged bool
	fn         func(http.ResponseWriter, *http.Request, *RPCRequest)
}

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"rewards_logAirdrop":        {privileged: true, fn: s.handleLogAirdrop},
		"rewards_markPaid":          {privileged: true, fn: s.handleMarkPaid},
		"rewards_donate":            {fn: s.handleDonate},
		"rewards_selectRewardKind":  {fn: s.handleSelectRewardKind},
		"rewards_sendItemReward":    {fn: s.handleSendItemReward},
		"rewards_sendBalanceReward": {fn: s.handleSendBalanceReward},
		"rewards_getDonor":          {fn: s.handleGetDonor},
		"rewards_listRecords":       {fn: s.handleListRecords},
		"rewards_listDonors":        {fn: s.handleListDonors},
		"rewards_projectTotals":     {fn: s.handleProjectTotals},
		"rewards_totalDistributed":  {fn: s.handleTotalDistributed},
		"rewards_donorCount":        {fn: s.handleDonorCount},
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}
