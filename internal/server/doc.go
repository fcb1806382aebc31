// Package server implements the MCP (Model Context Protocol) server that drives
// a tracing session.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Document:
//   - trace_load_image: Make an image the tracing subject
//   - trace_state: Session and transform snapshot
//
// Outline:
//   - trace_extract_edges: Stateless edge extraction
//   - trace_outline: Outline of the loaded image
//   - trace_set_threshold: Re-extract with a new threshold
//
// Transform:
//   - trace_adjust: Scale, rotation, opacity, flip, mode, lock
//   - trace_drag: Pointer drag gesture
//   - trace_reset: Reset geometry
//
// Output:
//   - trace_render: Composite over the camera frame
//
// Preferences:
//   - trace_onboarding: Onboarding flag
//
// There is exactly one session per server process. Loading an image
// supersedes any extraction still running for the previous one.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses with code -32000
// (tool execution failure) or -32602 (invalid arguments). The data field
// carries the Go error string.
//
// # Usage
//
//	srv := server.New(server.Options{Config: cfg, Logger: logger})
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    logger.Error("server error", "error", err)
//	}
package server
