package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/tracevision-mcp/internal/camera"
	"github.com/ironsheep/tracevision-mcp/internal/imaging"
	"github.com/ironsheep/tracevision-mcp/internal/overlay"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "trace_load_image", "trace_drag").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		var argErr *argumentError
		if errors.As(err, &argErr) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Document
	case "trace_load_image":
		return s.handleLoadImage(ctx, args)
	case "trace_state":
		return s.session.Status(), nil

	// Outline
	case "trace_extract_edges":
		return s.handleExtractEdges(args)
	case "trace_outline":
		return s.handleOutline(ctx, args)
	case "trace_set_threshold":
		return s.handleSetThreshold(args)

	// Transform
	case "trace_adjust":
		return s.handleAdjust(args)
	case "trace_drag":
		return s.handleDrag(args)
	case "trace_reset":
		return s.session.Overlay().Reset(), nil

	// Output
	case "trace_render":
		return s.handleRender(ctx, args)

	// Preferences
	case "trace_onboarding":
		return s.handleOnboarding(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// argumentError marks a tool failure caused by the caller's arguments.
type argumentError struct {
	err error
}

func (e *argumentError) Error() string { return e.err.Error() }

func (e *argumentError) Unwrap() error { return e.err }

func invalidArgs(format string, a ...interface{}) error {
	return &argumentError{err: fmt.Errorf(format, a...)}
}

// unmarshalArgs decodes tool arguments. Missing arguments decode as the zero
// value.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &argumentError{err: err}
	}
	return nil
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Document Handlers ===

// imageSource names an image either by file path or by inline base64 data.
type imageSource struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

// bytes returns the encoded image named by src. Data URLs are accepted.
func (src imageSource) bytes() ([]byte, error) {
	data := strings.TrimSpace(src.ImageBase64)
	if i := strings.Index(data, ";base64,"); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+len(";base64,"):]
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, invalidArgs("image_base64 is not valid base64: %v", err)
	}
	return b, nil
}

func (src imageSource) validate() error {
	switch {
	case src.Path == "" && src.ImageBase64 == "":
		return invalidArgs("one of path or image_base64 is required")
	case src.Path != "" && src.ImageBase64 != "":
		return invalidArgs("path and image_base64 are mutually exclusive")
	}
	return nil
}

type loadImageResult struct {
	Image              *imaging.ImageInfo `json:"image"`
	Generation         uint64             `json:"generation"`
	Transform          overlay.Transform  `json:"transform"`
	OnboardingComplete bool               `json:"onboarding_complete"`
}

func (s *Server) handleLoadImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageSource
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	var (
		info *imaging.ImageInfo
		err  error
	)
	if a.Path != "" {
		info, err = s.session.LoadImageFile(ctx, a.Path)
	} else {
		var data []byte
		if data, err = a.bytes(); err != nil {
			return nil, err
		}
		info, err = s.session.LoadImage(ctx, data)
	}
	if err != nil {
		return nil, err
	}

	// Loading an image counts as finishing onboarding.
	onboarded := true
	if err := s.prefs.SetOnboardingComplete(true); err != nil {
		s.logger.Warn("failed to persist onboarding flag", "error", err)
		onboarded = false
	}

	st := s.session.Status()
	return &loadImageResult{
		Image:              info,
		Generation:         st.Generation,
		Transform:          st.Transform,
		OnboardingComplete: onboarded,
	}, nil
}

// === Outline Handlers ===

type extractEdgesArgs struct {
	imageSource
	Threshold *int     `json:"threshold"`
	Luma      string   `json:"luma"`
	Contrast  *float64 `json:"contrast"`
}

// handleExtractEdges runs the engine on an arbitrary image without touching
// the session.
func (s *Server) handleExtractEdges(args json.RawMessage) (interface{}, error) {
	var a extractEdgesArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	opts := s.cfg.EdgeOptions()
	if a.Threshold != nil {
		if *a.Threshold < 0 {
			return nil, invalidArgs("threshold must be >= 0, got %d", *a.Threshold)
		}
		opts.Threshold = *a.Threshold
	}
	if a.Luma != "" {
		luma, err := imaging.ParseLuma(a.Luma)
		if err != nil {
			return nil, &argumentError{err: err}
		}
		opts.Luma = luma
	}
	if a.Contrast != nil {
		if *a.Contrast <= 0 {
			return nil, invalidArgs("contrast must be > 0, got %v", *a.Contrast)
		}
		opts.Contrast = *a.Contrast
	}

	var edges *imaging.EdgeMap
	if a.Path != "" {
		// The cache rereads the file if it changed since the last request.
		img, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, err
		}
		if edges, err = imaging.ExtractEdgesWithOptions(img, opts); err != nil {
			return nil, err
		}
	} else {
		data, err := a.bytes()
		if err != nil {
			return nil, err
		}
		if _, edges, err = imaging.ExtractEdgesFromBytes(data, opts); err != nil {
			return nil, err
		}
	}
	return edges.Result()
}

type outlineArgs struct {
	Wait bool `json:"wait"`
}

func (s *Server) handleOutline(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a outlineArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Wait {
		if err := s.session.Wait(ctx); err != nil {
			return nil, err
		}
	}
	edges, err := s.session.Outline()
	if err != nil {
		return nil, err
	}
	return edges.Result()
}

type setThresholdArgs struct {
	Threshold *int `json:"threshold"`
}

func (s *Server) handleSetThreshold(args json.RawMessage) (interface{}, error) {
	var a setThresholdArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Threshold == nil {
		return nil, invalidArgs("threshold is required")
	}
	if err := s.session.SetThreshold(*a.Threshold); err != nil {
		if errors.Is(err, imaging.ErrInvalidThreshold) {
			return nil, &argumentError{err: err}
		}
		return nil, err
	}
	return s.session.Status(), nil
}

// === Transform Handlers ===

type adjustArgs struct {
	Scale    *float64 `json:"scale"`
	Rotation *int     `json:"rotation"`
	Opacity  *float64 `json:"opacity"`
	Flipped  *bool    `json:"flipped"`
	Mode     string   `json:"mode"`
	Locked   *bool    `json:"locked"`
}

// handleAdjust applies every supplied field. Adjustments are allowed while
// locked; the lock only gates dragging.
func (s *Server) handleAdjust(args json.RawMessage) (interface{}, error) {
	var a adjustArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	var mode overlay.Mode
	if a.Mode != "" {
		m, err := overlay.ParseMode(a.Mode)
		if err != nil {
			return nil, &argumentError{err: err}
		}
		mode = m
	}

	st := s.session.Overlay()
	t := st.Snapshot()
	if a.Scale != nil {
		t = st.SetScale(*a.Scale)
	}
	if a.Rotation != nil {
		t = st.SetRotation(*a.Rotation)
	}
	if a.Opacity != nil {
		t = st.SetOpacity(*a.Opacity)
	}
	if a.Flipped != nil {
		t = st.SetFlipped(*a.Flipped)
	}
	if a.Mode != "" {
		t = st.SetMode(mode)
	}
	if a.Locked != nil {
		t = st.SetLocked(*a.Locked)
	}
	return t, nil
}

type dragArgs struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type dragResult struct {
	Dragging  bool              `json:"dragging"`
	Transform overlay.Transform `json:"transform"`
}

func (s *Server) handleDrag(args json.RawMessage) (interface{}, error) {
	var a dragArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	st := s.session.Overlay()
	var t overlay.Transform
	switch a.Phase {
	case "begin":
		t = st.BeginDrag(a.X, a.Y)
	case "move":
		t = st.ContinueDrag(a.X, a.Y)
	case "end":
		t = st.EndDrag()
	default:
		return nil, invalidArgs("phase must be begin, move or end, got %q", a.Phase)
	}
	return &dragResult{Dragging: st.Dragging(), Transform: t}, nil
}

// === Output Handlers ===

type renderArgs struct {
	CameraPath string `json:"camera_path"`
	Wait       bool   `json:"wait"`
}

type renderResult struct {
	*imaging.ComposeResult
	Mode          overlay.Mode `json:"mode"`
	CameraMessage string       `json:"camera_message,omitempty"`
}

// handleRender composites the displayed image over the latest camera frame.
// Without a camera the frame is rendered on black and the result says why.
func (s *Server) handleRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a renderArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Wait {
		if err := s.session.Wait(ctx); err != nil {
			return nil, err
		}
	}

	img, mode, err := s.session.Display()
	if err != nil {
		return nil, err
	}

	src := s.camera
	if a.CameraPath != "" {
		src = camera.NewFileSource(a.CameraPath, s.cache)
	}
	backdrop, camErr := src.Frame(ctx)
	if camErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Info("rendering without camera", "error", camErr)
	}

	composed, err := imaging.ComposePNG(backdrop, img, s.session.Overlay().Snapshot(), s.cfg.ComposeOptions())
	if err != nil {
		return nil, err
	}
	return &renderResult{
		ComposeResult: composed,
		Mode:          mode,
		CameraMessage: camera.Message(camErr),
	}, nil
}

// === Preference Handlers ===

type onboardingArgs struct {
	Complete *bool `json:"complete"`
}

type onboardingResult struct {
	Complete bool `json:"complete"`
}

func (s *Server) handleOnboarding(args json.RawMessage) (interface{}, error) {
	var a onboardingArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Complete != nil {
		if err := s.prefs.SetOnboardingComplete(*a.Complete); err != nil {
			return nil, err
		}
	}
	done, err := s.prefs.OnboardingComplete()
	if err != nil {
		return nil, err
	}
	return &onboardingResult{Complete: done}, nil
}
