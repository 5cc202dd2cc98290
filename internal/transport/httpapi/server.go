package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"playwright-mcp/internal/config"
	"playwright-mcp/internal/entity"
	"playwright-mcp/internal/ports"
	"playwright-mcp/pkg/logg"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const httpLayerName = "HTTPTransport"

const protocolVersion = "2024-11-05"

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32603
	codeNotInitialized = -32002
)

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

// Server exposes the dispatcher over HTTP: JSON-RPC on /mcp plus a
// keep-alive event stream on /sse. The session outlives any connection;
// a dropped stream never touches browser state.
type Server struct {
	config      *config.Config
	logger      *zap.Logger
	dispatcher  ports.Dispatcher
	router      chi.Router
	httpServer  *http.Server
	initialized atomic.Bool
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Dispatcher ports.Dispatcher
}

func NewServer(params Params) *Server {
	s := &Server{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, httpLayerName)),
		dispatcher: params.Dispatcher,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)
	r.Post("/mcp", s.handleMCP)
	r.Get("/sse", s.handleSSE)
	r.Post("/sse", s.handleSSEPost)

	s.router = r
	s.httpServer = &http.Server{
		Addr:    params.Config.ServerConfig.HTTPAddr,
		Handler: r,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("HTTP transport listening", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "playwright-mcp-server-sse",
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Playwright MCP Server SSE",
		"version": s.config.ServerConfig.Version,
		"endpoints": map[string]string{
			"sse":    "/sse (GET for stream, POST for commands)",
			"mcp":    "/mcp (MCP commands)",
			"health": "/health",
		},
		"status": "ready",
	})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: fmt.Sprintf("parse error: %v", err)},
		})

		return
	}

	logger := s.logger.With(zap.String(logg.Method, req.Method))
	logger.Info("MCP request received")

	switch req.Method {
	case "initialize":
		s.initialized.Store(true)
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]any{
				"protocolVersion": protocolVersion,
				"capabilities":    map[string]any{"tools": map[string]any{}},
				"serverInfo": map[string]any{
					"name":    s.config.ServerConfig.Name,
					"version": s.config.ServerConfig.Version,
				},
			},
		})
	case "tools/list":
		if !s.requireInitialized(w, req.ID) {
			return
		}

		tools := make([]map[string]any, 0)
		for _, desc := range s.dispatcher.Catalog() {
			tools = append(tools, map[string]any{
				"name":        desc.Name,
				"description": desc.Description,
				"inputSchema": desc.InputSchema(),
			})
		}

		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]any{"tools": tools},
		})
	case "tools/call":
		if !s.requireInitialized(w, req.ID) {
			return
		}

		correlationID := middleware.GetReqID(r.Context())
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		result := s.dispatcher.Dispatch(r.Context(), entity.CommandRequest{
			Name:          req.Params.Name,
			Arguments:     req.Params.Arguments,
			CorrelationID: correlationID,
		})

		// Failed commands stay in-band: the caller reads the failure
		// text from the result envelope and decides whether to retry.
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]any{
				"content": []map[string]any{
					{"type": "text", "text": result.Message},
				},
			},
		})
	default:
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("Unknown method: %s", req.Method)},
		})
	}
}

func (s *Server) requireInitialized(w http.ResponseWriter, id any) bool {
	if s.initialized.Load() {
		return true
	}

	writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: codeNotInitialized, Message: "Server not initialized"},
	})

	return false
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	connID := uuid.NewString()
	logger := s.logger.With(zap.String("conn_id", connID))
	logger.Info("SSE stream opened")

	capabilities := make([]string, 0)
	tools := make([]map[string]string, 0)
	for _, desc := range s.dispatcher.Catalog() {
		capabilities = append(capabilities, desc.Name)
		tools = append(tools, map[string]string{
			"name":        desc.Name,
			"description": desc.Description,
		})
	}

	writeEvent(w, flusher, map[string]any{
		"type": "init",
		"data": map[string]any{
			"server":       s.config.ServerConfig.Name,
			"version":      s.config.ServerConfig.Version,
			"capabilities": capabilities,
		},
	})

	writeEvent(w, flusher, map[string]any{
		"type": "tools",
		"data": tools,
	})

	ticker := time.NewTicker(s.config.ServerConfig.HeartbeatInterval)
	defer ticker.Stop()

	counter := 0

	for {
		select {
		case <-r.Context().Done():
			logger.Info("SSE stream closed by client")

			return
		case <-ticker.C:
			writeEvent(w, flusher, map[string]any{
				"type":      "heartbeat",
				"timestamp": counter,
				"status":    "alive",
				"server":    "playwright-mcp",
			})
			counter++
		}
	}
}

func (s *Server) handleSSEPost(w http.ResponseWriter, r *http.Request) {
	var data map[string]any

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "error",
			"message": err.Error(),
		})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"data":      data,
		"processed": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event map[string]any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
