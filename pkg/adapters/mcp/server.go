package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/extract"
	"github.com/aretw0/graphlens/pkg/projection"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CurrentGraphURI is the resource holding the graph on screen.
const CurrentGraphURI = "graphlens://graph/current"

// Viewer is the part of graphlens.Viewer exposed over MCP.
type Viewer interface {
	Load(ctx context.Context, filename string, data []byte) (*graphlens.Snapshot, error)
	Reload(ctx context.Context, filename string) (*graphlens.Snapshot, error)
	Forget(ctx context.Context, filename string) error
	History(ctx context.Context) ([]domain.HistoryEntry, error)
	Current() *graphlens.Snapshot
	Extractor() *extract.Extractor
	Projector() *projection.Projector
}

// FileArgs identifies a workflow file passed inline. Exactly one of Content
// and ContentBase64 is expected; PNG files need the base64 form.
type FileArgs struct {
	Filename      string `json:"filename"`
	Content       string `json:"content,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
}

func (a FileArgs) data() ([]byte, error) {
	if a.Filename == "" {
		return nil, errors.New("filename is required")
	}
	switch {
	case a.ContentBase64 != "":
		return base64.StdEncoding.DecodeString(a.ContentBase64)
	case a.Content != "":
		return []byte(a.Content), nil
	}
	return nil, errors.New("content or content_base64 is required")
}

// ExtractArgs are the arguments of extract_workflow.
type ExtractArgs struct {
	FileArgs
}

// ExtractResponse is the canonical workflow recovered from a file.
type ExtractResponse struct {
	Filename string           `json:"filename" jsonschema_description:"Name of the extracted file"`
	Source   string           `json:"source" jsonschema_description:"Where the workflow was found: json, png:tEXt:<keyword> or png:scan"`
	Workflow *domain.Workflow `json:"workflow" jsonschema_description:"The canonical workflow"`
}

// ProjectArgs are the arguments of project_workflow.
type ProjectArgs struct {
	FileArgs
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Load   bool    `json:"load,omitempty"`
}

// GraphResponse is a projected graph and where it came from.
type GraphResponse struct {
	Filename string                 `json:"filename" jsonschema_description:"Name of the projected file"`
	Source   string                 `json:"source,omitempty" jsonschema_description:"Where the workflow was found"`
	Digest   string                 `json:"digest,omitempty" jsonschema_description:"BLAKE3 digest of the workflow JSON"`
	Graph    *domain.ProjectedGraph `json:"graph" jsonschema_description:"Renderer-ready graph"`
}

// FilenameArgs name a history entry.
type FilenameArgs struct {
	Filename string `json:"filename"`
}

// HistoryItem is a history entry without its content.
type HistoryItem struct {
	Filename  string `json:"filename"`
	Timestamp int64  `json:"timestamp"`
	Digest    string `json:"digest,omitempty"`
}

// HistoryResponse lists history entries, most recent first.
type HistoryResponse struct {
	Entries []HistoryItem `json:"entries" jsonschema_description:"Previously loaded files, most recent first"`
}

// DeleteResponse confirms a history deletion.
type DeleteResponse struct {
	Filename string `json:"filename"`
	Deleted  bool   `json:"deleted"`
}

// Server wraps a Viewer and exposes it as an MCP Server.
type Server struct {
	viewer    Viewer
	viewport  domain.Viewport
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

// WithLogger sets the logger used for tool failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithViewport sets the default viewport for project_workflow.
func WithViewport(vp domain.Viewport) Option {
	return func(s *Server) {
		s.viewport = vp
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(viewer Viewer, opts ...Option) *Server {
	s := &Server{
		viewer:    viewer,
		viewport:  graphlens.DefaultViewport,
		mcpServer: server.NewMCPServer("graphlens-mcp", graphlens.Version(), server.WithResourceCapabilities(false, false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, for custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

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

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func fileOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("filename", mcp.Required(), mcp.Description("File name; the extension (.json or .png) selects the parser")),
		mcp.WithString("content", mcp.Description("File content as text (JSON files)")),
		mcp.WithString("content_base64", mcp.Description("File content, base64 encoded (PNG files)")),
	}
}

func (s *Server) registerTools() {
	// TOOL: extract_workflow
	extractOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Recover the workflow JSON embedded in a .json or .png file."),
		mcp.WithOutputSchema[ExtractResponse](),
	}, fileOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("extract_workflow", extractOpts...), mcp.NewStructuredToolHandler(s.handleExtract))

	// TOOL: project_workflow
	projectOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Project a workflow file into a renderer-ready graph. With load=true the file is also recorded in history and becomes the current graph."),
		mcp.WithNumber("width", mcp.Description("Viewport width used to fit the camera")),
		mcp.WithNumber("height", mcp.Description("Viewport height used to fit the camera")),
		mcp.WithBoolean("load", mcp.Description("Record in history and make current")),
		mcp.WithOutputSchema[GraphResponse](),
	}, fileOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("project_workflow", projectOpts...), mcp.NewStructuredToolHandler(s.handleProject))

	// TOOL: list_history
	s.mcpServer.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List previously loaded files, most recent first."),
		mcp.WithOutputSchema[HistoryResponse](),
	), mcp.NewStructuredToolHandler(s.handleListHistory))

	// TOOL: open_history
	s.mcpServer.AddTool(mcp.NewTool("open_history",
		mcp.WithDescription("Make a history entry the current graph."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("History entry to open")),
		mcp.WithOutputSchema[GraphResponse](),
	), mcp.NewStructuredToolHandler(s.handleOpenHistory))

	// TOOL: delete_history
	s.mcpServer.AddTool(mcp.NewTool("delete_history",
		mcp.WithDescription("Remove a file from history."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("History entry to delete")),
		mcp.WithOutputSchema[DeleteResponse](),
	), mcp.NewStructuredToolHandler(s.handleDeleteHistory))
}

func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest, args ExtractArgs) (ExtractResponse, error) {
	data, err := args.data()
	if err != nil {
		return ExtractResponse{}, err
	}
	res, err := s.viewer.Extractor().ExtractFile(args.Filename, data)
	if err != nil {
		s.logger.Debug("MCP extract_workflow failed", "file", args.Filename, "error", err)
		return ExtractResponse{}, err
	}
	return ExtractResponse{Filename: args.Filename, Source: res.Source, Workflow: res.Workflow}, nil
}

func (s *Server) handleProject(ctx context.Context, request mcp.CallToolRequest, args ProjectArgs) (GraphResponse, error) {
	data, err := args.data()
	if err != nil {
		return GraphResponse{}, err
	}
	vp := s.viewport
	if args.Width > 0 && args.Height > 0 {
		vp = domain.Viewport{Width: args.Width, Height: args.Height}
	}

	if args.Load {
		snap, err := s.viewer.Load(ctx, args.Filename, data)
		if err != nil {
			return GraphResponse{}, err
		}
		return GraphResponse{
			Filename: snap.Filename,
			Source:   snap.Source,
			Digest:   snap.Digest,
			Graph:    s.viewer.Projector().Project(snap.Workflow, vp),
		}, nil
	}

	res, err := s.viewer.Extractor().ExtractFile(args.Filename, data)
	if err != nil {
		return GraphResponse{}, err
	}
	return GraphResponse{
		Filename: args.Filename,
		Source:   res.Source,
		Digest:   graphlens.Digest(res.Content),
		Graph:    s.viewer.Projector().Project(res.Workflow, vp),
	}, nil
}

func (s *Server) handleListHistory(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (HistoryResponse, error) {
	entries, err := s.viewer.History(ctx)
	if err != nil {
		return HistoryResponse{}, fmt.Errorf("list history failed: %w", err)
	}
	items := make([]HistoryItem, len(entries))
	for i, e := range entries {
		items[i] = HistoryItem{Filename: e.Filename, Timestamp: e.Timestamp, Digest: e.Digest}
	}
	return HistoryResponse{Entries: items}, nil
}

func (s *Server) handleOpenHistory(ctx context.Context, request mcp.CallToolRequest, args FilenameArgs) (GraphResponse, error) {
	snap, err := s.viewer.Reload(ctx, args.Filename)
	if err != nil {
		return GraphResponse{}, err
	}
	return GraphResponse{Filename: snap.Filename, Source: snap.Source, Digest: snap.Digest, Graph: snap.Graph}, nil
}

func (s *Server) handleDeleteHistory(ctx context.Context, request mcp.CallToolRequest, args FilenameArgs) (DeleteResponse, error) {
	if args.Filename == "" {
		return DeleteResponse{}, errors.New("filename is required")
	}
	if err := s.viewer.Forget(ctx, args.Filename); err != nil {
		return DeleteResponse{}, err
	}
	return DeleteResponse{Filename: args.Filename, Deleted: true}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(CurrentGraphURI, "Current Graph",
		mcp.WithResourceDescription("The projected graph currently on screen"),
		mcp.WithMIMEType("application/json"),
	), s.readCurrentGraph)
}

func (s *Server) readCurrentGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap := s.viewer.Current()
	if snap == nil {
		return nil, domain.ErrNoGraphLoaded
	}
	jsonBytes, err := json.Marshal(GraphResponse{Filename: snap.Filename, Source: snap.Source, Digest: snap.Digest, Graph: snap.Graph})
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CurrentGraphURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
