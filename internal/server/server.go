package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/ironsheep/tracevision-mcp/internal/camera"
	"github.com/ironsheep/tracevision-mcp/internal/config"
	"github.com/ironsheep/tracevision-mcp/internal/imaging"
	"github.com/ironsheep/tracevision-mcp/internal/prefs"
	"github.com/ironsheep/tracevision-mcp/internal/session"
)

// ServerName is reported in the initialize handshake.
const ServerName = "tracevision-mcp"

// Options configures a Server. Zero fields fall back to defaults derived
// from Config.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Camera  camera.Source
	Prefs   *prefs.Store
	Session *session.Session
	Version string
}

// Server handles MCP protocol communication
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *session.Session
	camera  camera.Source
	prefs   *prefs.Store
	cache   *imaging.ImageCache
	version string
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sess := opts.Session
	if sess == nil {
		sess = session.New(session.Options{
			Edge:   cfg.EdgeOptions(),
			Logger: logger.With("component", "session"),
		})
	}
	cache := imaging.NewImageCache()
	cam := opts.Camera
	if cam == nil {
		cam = camera.Open(cfg.CameraPath, cache)
	}
	store := opts.Prefs
	if store == nil {
		store = prefs.Open(cfg.StateDir)
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		camera:  cam,
		prefs:   store,
		cache:   cache,
		version: version,
	}
}

// Session returns the session driven by the server.
func (s *Server) Session() *session.Session {
	return s.session
}

// Run reads line-delimited JSON-RPC requests from r and writes responses to
// w until r is exhausted or ctx is canceled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Base64 image payloads are large.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", "error", err)
			if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
				s.logger.Error("failed to encode response", "error", err)
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to encode response", "method", req.Method, "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.logger.Debug("request", "method", req.Method, "id", req.ID)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": s.version,
			},
		},
	}
}
