package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func imageSourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file. Mutually exclusive with image_base64.",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64-encoded image bytes or a data URL. Mutually exclusive with path.",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	extractProps := imageSourceProperties()
	extractProps["threshold"] = map[string]interface{}{
		"type":        "integer",
		"description": "Edge threshold on the sum of 4-neighbor differences. Lower values keep fainter lines. Default from configuration (15).",
		"minimum":     0,
	}
	extractProps["luma"] = map[string]interface{}{
		"type":        "string",
		"description": "Grayscale conversion: rec601 (default) or perceptual (CIE L*).",
		"enum":        []string{"rec601", "perceptual"},
	}
	extractProps["contrast"] = map[string]interface{}{
		"type":        "number",
		"description": "Contrast multiplier applied after grayscale. 3 matches a 300% boost, 1 disables it.",
	}

	return []Tool{
		// Document
		{
			Name:        "trace_load_image",
			Description: "Load a photo or drawing as the tracing subject. Replaces the current image, resets position/scale/rotation, starts outline extraction in the background and marks onboarding complete.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "trace_state",
			Description: "Report the session: loaded image, extraction generation and progress, last error, threshold and the current overlay transform.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Outline
		{
			Name:        "trace_extract_edges",
			Description: "Convert any image into a black-on-transparent tracing outline and return it as base64 PNG. Does not change the session.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": extractProps,
			},
		},
		{
			Name:        "trace_outline",
			Description: "Return the outline of the loaded image as base64 PNG. Fails while extraction is still running unless wait is true.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Block until extraction of the current image finishes. Default false",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "trace_set_threshold",
			Description: "Change the edge threshold and re-extract the outline of the loaded image. The overlay transform is kept.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"threshold": map[string]interface{}{
						"type":        "integer",
						"description": "New threshold (>= 0)",
						"minimum":     0,
					},
				},
				"required": []string{"threshold"},
			},
		},

		// Transform
		{
			Name:        "trace_adjust",
			Description: "Change overlay settings. Only supplied fields are applied. Values are clamped: scale 0.1-5, rotation -180..180 degrees, opacity 0-1. Works while locked.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor (0.1 to 5)",
					},
					"rotation": map[string]interface{}{
						"type":        "integer",
						"description": "Clockwise rotation in degrees (-180 to 180)",
					},
					"opacity": map[string]interface{}{
						"type":        "number",
						"description": "Overlay opacity (0 to 1)",
					},
					"flipped": map[string]interface{}{
						"type":        "boolean",
						"description": "Mirror the overlay horizontally",
					},
					"mode": map[string]interface{}{
						"type":        "string",
						"description": "Which variant to display",
						"enum":        []string{"original", "outline"},
					},
					"locked": map[string]interface{}{
						"type":        "boolean",
						"description": "Lock the position against dragging",
					},
				},
			},
		},
		{
			Name:        "trace_drag",
			Description: "Move the overlay with a pointer gesture: begin at the pointer, move to new pointer positions, end. Ignored while locked.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"phase": map[string]interface{}{
						"type":        "string",
						"description": "Gesture phase",
						"enum":        []string{"begin", "move", "end"},
					},
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Pointer X in viewport pixels",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Pointer Y in viewport pixels",
					},
				},
				"required": []string{"phase"},
			},
		},
		{
			Name:        "trace_reset",
			Description: "Reset position, scale and rotation. Flip, opacity, mode and lock are kept.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Output
		{
			Name:        "trace_render",
			Description: "Render the overlay over the current camera frame and return the composite as base64 PNG. Without a camera the overlay is drawn on black and camera_message explains why.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"camera_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional frame file to use instead of the configured camera",
					},
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Wait for outline extraction before rendering. Default false",
						"default":     false,
					},
				},
			},
		},

		// Preferences
		{
			Name:        "trace_onboarding",
			Description: "Read the persisted onboarding flag, or set it when complete is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"complete": map[string]interface{}{
						"type":        "boolean",
						"description": "New value of the flag",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
