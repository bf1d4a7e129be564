// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Easel drawing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/inkhorn/easel/internal/boardservice"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/session"
)

// Server wraps the MCP server with Easel tools.
type Server struct {
	mcp *server.MCPServer
	svc *boardservice.Service
}

// New creates a new MCP server with all Easel tools registered.
func New(svc *boardservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Easel",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_boards",
		mcp.WithDescription("List all sketch boards with their ids, names, and sizes."),
		mcp.WithString("query", mcp.Description("Optional name filter")),
	), s.listBoards)

	s.mcp.AddTool(mcp.NewTool("create_board",
		mcp.WithDescription("Create a new blank sketch board. Read the drawing guide first via "+
			"the get_drawing_guide tool or the easel://drawing-guide resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name for the board")),
		mcp.WithNumber("width", mcp.Description("Canvas width in pixels (default from config)")),
		mcp.WithNumber("height", mcp.Description("Canvas height in pixels (default from config)")),
	), s.createBoard)

	s.mcp.AddTool(mcp.NewTool("view_board",
		mcp.WithDescription("Render the current board raster as a PNG image."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
	), s.viewBoard)

	s.mcp.AddTool(mcp.NewTool("draw_stroke",
		mcp.WithDescription("Draw one continuous stroke on a board. Points are raster-space "+
			"coordinates (origin top-left, +y down) and MUST follow the format in the "+
			"drawing guide. One call is one pointer-down-to-pointer-up gesture and one undo step."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithString("points", mcp.Required(), mcp.Description(`JSON array of points, e.g. [{"x":10,"y":20},{"x":30,"y":40}]`)),
		mcp.WithString("color", mcp.Description("Stroke color as #rrggbb (default: board pen)")),
		mcp.WithNumber("width", mcp.Description("Stroke width in pixels (default: board pen)")),
	), s.drawStroke)

	s.mcp.AddTool(mcp.NewTool("set_pen",
		mcp.WithDescription("Change the board's pen color and/or width for subsequent strokes."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithString("color", mcp.Description("Pen color as #rrggbb")),
		mcp.WithNumber("width", mcp.Description("Pen width in pixels")),
	), s.setPen)

	s.mcp.AddTool(mcp.NewTool("undo_board",
		mcp.WithDescription("Step the board's history back one snapshot."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
	), s.undoBoard)

	s.mcp.AddTool(mcp.NewTool("redo_board",
		mcp.WithDescription("Step the board's history forward one snapshot."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
	), s.redoBoard)

	s.mcp.AddTool(mcp.NewTool("clear_board",
		mcp.WithDescription("🛑 DESTRUCTIVE: Fill the board with the background color. "+
			"The cleared content stays reachable via undo_board."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.clearBoard)

	s.mcp.AddTool(mcp.NewTool("generate_image",
		mcp.WithDescription("Send the board sketch plus a text prompt to the image generation "+
			"service and replace the board content with the result. Blocks until done; "+
			"the previous content stays reachable via undo_board."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What to generate")),
		mcp.WithString("model", mcp.Description("Model variant (default from config)")),
	), s.generateImage)

	s.mcp.AddTool(mcp.NewTool("import_image",
		mcp.WithDescription("Import an external image onto a board as its new base layer. "+
			"Accepts an http(s) URL or a base64 data URI."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
	), s.importImage)

	s.mcp.AddTool(mcp.NewTool("export_board",
		mcp.WithDescription("Save the board's current raster into the gallery as a PNG file."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithString("name", mcp.Description("Gallery file name (default: board name)")),
	), s.exportBoard)

	s.mcp.AddTool(mcp.NewTool("get_drawing_guide",
		mcp.WithDescription("Returns the Easel drawing guide: coordinate system, stroke format, "+
			"and the generation workflow. Call this before drawing."),
	), s.getDrawingGuide)

	// Resource: drawing guide.
	s.mcp.AddResource(
		mcp.NewResource("easel://drawing-guide", "Drawing Guide",
			mcp.WithResourceDescription("Coordinate system, stroke format, and generation workflow for Easel boards."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDrawingGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func boolPtr(b bool) *bool { return &b }

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listBoards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	boards, err := s.svc.ListBoards(ctx, query, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(boards), nil
}

func (s *Server) createBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	width := req.GetInt("width", 0)
	height := req.GetInt("height", 0)

	b, err := s.svc.CreateBoard(ctx, name, width, height)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b), nil
}

func (s *Server) viewBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.Image(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultImage(
		fmt.Sprintf("board %s (%d bytes)", id, len(data)),
		base64.StdEncoding.EncodeToString(data),
		"image/png",
	), nil
}

func (s *Server) drawStroke(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawPoints, err := req.RequireString("points")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var points []models.Point
	if err := json.Unmarshal([]byte(rawPoints), &points); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid points JSON: %v", err)), nil
	}
	if len(points) == 0 {
		return mcp.NewToolResultError("points must contain at least one point"), nil
	}

	st := models.Stroke{
		Points: points,
		Color:  req.GetString("color", ""),
		Width:  req.GetFloat("width", 0),
	}
	applied, state, err := s.svc.ApplyStroke(ctx, id, st, 0, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"applied": applied, "state": state}), nil
}

func (s *Server) setPen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pen := models.Pen{
		Color: req.GetString("color", ""),
		Width: req.GetFloat("width", 0),
	}
	state, err := s.svc.SetPen(ctx, id, pen)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"pen": state.Pen}), nil
}

func (s *Server) undoBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.stepBoard(ctx, req, "undo", s.svc.Undo)
}

func (s *Server) redoBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.stepBoard(ctx, req, "redo", s.svc.Redo)
}

func (s *Server) stepBoard(ctx context.Context, req mcp.CallToolRequest, op string, fn func(context.Context, string) (bool, session.State, error)) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	applied, state, err := fn(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !applied {
		return mcp.NewToolResultText(fmt.Sprintf("nothing to %s", op)), nil
	}
	return jsonResult(map[string]any{"applied": true, "state": state}), nil
}

func (s *Server) clearBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.svc.Clear(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"state": state}), nil
}

func (s *Server) generateImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	model := req.GetString("model", "")

	res, err := s.svc.Generate(ctx, id, prompt, model)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := res.Text
	if text == "" {
		text = "image applied"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) exportBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("name", "")

	saved, err := s.svc.ExportToGallery(ctx, id, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("exported: %s", saved)), nil
}

func (s *Server) getDrawingGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DrawingGuide), nil
}

func (s *Server) readDrawingGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "easel://drawing-guide",
			MIMEType: "text/markdown",
			Text:     DrawingGuide,
		},
	}, nil
}
