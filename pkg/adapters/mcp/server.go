package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/internal/render"
	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// MessageResponse is the structured output of apply_message: the outcome
// plus the document as the canvas would now show it.
type MessageResponse struct {
	Result bridge.Result `json:"result" jsonschema_description:"Outcome of the message"`
	Markup string        `json:"markup" jsonschema_description:"Rendered markup of the document after the message"`
	Nodes  int           `json:"nodes" jsonschema_description:"Number of nodes in the document"`
}

// DocumentResponse carries a stored document.
type DocumentResponse struct {
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	Revision  int64           `json:"revision"`
	Document  json.RawMessage `json:"document" jsonschema_description:"Serialized node forest"`
}

// ExportResponse carries a rendered export.
type ExportResponse struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

type ProjectsResponse struct {
	Projects []string `json:"projects"`
}

// Studio defines the part of the lattice facade exposed to agents.
type Studio interface {
	Open(ctx context.Context, projectID string, surface ports.Surface) (*bridge.Session, error)
	Release(ctx context.Context, sess *bridge.Session) error
	Project(ctx context.Context, projectID string) (*domain.Project, error)
	Projects(ctx context.Context) ([]string, error)
	Palette() ports.PaletteLoader
}

var _ Studio = (*lattice.Studio)(nil)

// Server wraps a Studio and exposes it as an MCP Server.
type Server struct {
	studio    Studio
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(studio Studio, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		studio:    studio,
		logger:    logger,
		mcpServer: server.NewMCPServer("lattice-mcp", strings.TrimSpace(lattice.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var messageTypes = []string{
	bridge.MsgElementSelected,
	bridge.MsgSelectionCleared,
	bridge.MsgElementTextChanged,
	bridge.MsgElementTagChanged,
	bridge.MsgDomUpdated,
	bridge.MsgElementMoved,
	bridge.MsgElementMoveUp,
	bridge.MsgElementMoveDown,
	bridge.MsgElementDelete,
	bridge.MsgElementDuplicate,
	bridge.MsgElementsWrapInDiv,
	bridge.MsgPaletteDrop,
	bridge.MsgStyleChanged,
	bridge.MsgAttributeChanged,
}

func (s *Server) registerTools() {
	// TOOL: apply_message
	applyTool := mcp.NewTool("apply_message",
		mcp.WithDescription("Apply one editing message to a project document and return the rendered result."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to edit (created when missing)")),
		mcp.WithString("type", mcp.Required(), mcp.Enum(messageTypes...), mcp.Description("Message type")),
		mcp.WithString("id", mcp.Description("Target node ID")),
		mcp.WithString("parent_id", mcp.Description("Destination parent ID, or 'root' for the top level")),
		mcp.WithNumber("index", mcp.Description("Destination index among the new siblings (clamped)")),
		mcp.WithString("text", mcp.Description("New inline text")),
		mcp.WithString("name", mcp.Description("Style property or attribute name")),
		mcp.WithString("value", mcp.Description("Style, attribute or tag value; empty removes")),
		mcp.WithString("kind", mcp.Description("Palette template kind for onPaletteDrop")),
		mcp.WithString("ids", mcp.Description("JSON array of node IDs for onElementsWrapInDiv")),
		mcp.WithString("document", mcp.Description("Full JSON document for onDomUpdated")),
		mcp.WithOutputSchema[MessageResponse](),
	)
	s.mcpServer.AddTool(applyTool, mcp.NewStructuredToolHandler(s.handleApplyMessage))

	// TOOL: get_document
	docTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get the JSON document of a project."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithOutputSchema[DocumentResponse](),
	)
	s.mcpServer.AddTool(docTool, mcp.NewStructuredToolHandler(s.handleGetDocument))

	// TOOL: export_project
	exportTool := mcp.NewTool("export_project",
		mcp.WithDescription("Render a project as a standalone HTML page or as Markdown."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("format", mcp.Enum("html", "markdown"), mcp.Description("Output format (default html)")),
		mcp.WithOutputSchema[ExportResponse](),
	)
	s.mcpServer.AddTool(exportTool, mcp.NewStructuredToolHandler(s.handleExport))

	// TOOL: list_projects
	listTool := mcp.NewTool("list_projects",
		mcp.WithDescription("List stored project IDs."),
		mcp.WithOutputSchema[ProjectsResponse](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleListProjects))
}

// decodeMessage maps tool arguments onto a bridge message. ids and document
// arrive as JSON strings and are passed through undecoded.
func decodeMessage(args map[string]any) (string, bridge.Message, error) {
	var msg bridge.Message
	projectID, _ := args["project_id"].(string)
	if projectID == "" {
		return "", msg, fmt.Errorf("%w: project_id is required", domain.ErrMalformedDocument)
	}

	fields := make(map[string]any, len(args))
	for k, v := range args {
		switch k {
		case "project_id":
		case "ids":
			msg.IDsJSON, _ = v.(string)
		case "document":
			if doc, ok := v.(string); ok {
				msg.Document = json.RawMessage(doc)
			}
		default:
			fields[k] = v
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &msg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return "", msg, err
	}
	if err := decoder.Decode(fields); err != nil {
		return "", msg, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
	}
	return projectID, msg, nil
}

func (s *Server) handleApplyMessage(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (MessageResponse, error) {
	projectID, msg, err := decodeMessage(args)
	if err != nil {
		return MessageResponse{}, err
	}

	sess, err := s.studio.Open(ctx, projectID, nil)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("open %q: %w", projectID, err)
	}
	defer func() {
		if err := s.studio.Release(context.WithoutCancel(ctx), sess); err != nil {
			s.logger.Error("MCP: session release failed", "project_id", projectID, "err", err)
		}
	}()

	result := sess.Dispatch(ctx, msg)
	if !result.OK {
		s.logger.Warn("MCP: message rejected", "project_id", projectID, "type", msg.Type, "code", result.Code)
	}

	tree, err := sess.Snapshot(ctx)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("snapshot failed: %w", err)
	}
	frame, err := render.Render(tree)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("render failed: %w", err)
	}
	return MessageResponse{Result: result, Markup: frame.Markup, Nodes: tree.Len()}, nil
}

func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (DocumentResponse, error) {
	projectID, _ := args["project_id"].(string)
	project, err := s.studio.Project(ctx, projectID)
	if err != nil {
		return DocumentResponse{}, fmt.Errorf("load %q: %w", projectID, err)
	}
	return DocumentResponse{
		ProjectID: project.ID,
		Name:      project.Name,
		Revision:  project.Revision,
		Document:  project.Tree,
	}, nil
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ExportResponse, error) {
	projectID, _ := args["project_id"].(string)
	format, _ := args["format"].(string)
	if format == "" {
		format = "html"
	}

	project, err := s.studio.Project(ctx, projectID)
	if err != nil {
		return ExportResponse{}, fmt.Errorf("load %q: %w", projectID, err)
	}
	tree, err := project.Document()
	if err != nil {
		return ExportResponse{}, err
	}

	var out string
	switch format {
	case "html":
		out, err = render.Page(tree, project.Name)
	case "markdown":
		out, err = render.Markdown(tree)
	default:
		return ExportResponse{}, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return ExportResponse{}, fmt.Errorf("export failed: %w", err)
	}
	return ExportResponse{Format: format, Content: out}, nil
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ProjectsResponse, error) {
	ids, err := s.studio.Projects(ctx)
	if err != nil {
		return ProjectsResponse{}, fmt.Errorf("list failed: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ProjectsResponse{Projects: ids}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: lattice://palette
	s.mcpServer.AddResource(mcp.NewResource("lattice://palette", "Palette Templates",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := s.paletteJSON(ctx)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "lattice://palette",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	// EXPOSE: lattice://projects
	s.mcpServer.AddResource(mcp.NewResource("lattice://projects", "Stored Projects",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.studio.Projects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "lattice://projects",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func (s *Server) paletteJSON(ctx context.Context) ([]byte, error) {
	palette := s.studio.Palette()
	kinds, err := palette.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	templates := make([]domain.Template, 0, len(kinds))
	for _, kind := range kinds {
		t, err := palette.GetTemplate(ctx, kind)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return json.Marshal(templates)
}
