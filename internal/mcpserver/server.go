// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes bookbot tools for LLM integration via stdio transport.
//
// The process holds a single session: the loaded book and the Q&A
// transcript live as long as the server does.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/bookbot/internal/bookservice"
	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/rag"
	"github.com/starford/bookbot/internal/session"
)

const defaultMaxBytes = 50 << 20

// Server wraps the MCP server with bookbot tools.
type Server struct {
	mcp        *server.MCPServer
	svc        *bookservice.Service
	sess       *session.Session
	credential string
	maxBytes   int64
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBytes bounds the size of documents load_book accepts.
func WithMaxBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// New creates a new MCP server with all bookbot tools registered.
// credential is used for every model call unless load_book passes its own.
func New(svc *bookservice.Service, sess *session.Session, credential string, opts ...Option) *Server {
	s := &Server{svc: svc, sess: sess, credential: credential, maxBytes: defaultMaxBytes}
	for _, o := range opts {
		o(s)
	}

	s.mcp = server.NewMCPServer(
		"Bookbot",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("load_book",
		mcp.WithDescription("Load a PDF book so questions can be asked about it. "+
			"Indexes are cached by content, so loading the same file again is fast."),
		mcp.WithString("source", mcp.Required(),
			mcp.Description("Local file path, http(s) URL, or data:application/pdf;base64 URI")),
		mcp.WithString("name", mcp.Description("Display name (defaults to the file name)")),
		mcp.WithString("api_key", mcp.Description("Model provider API key, if not configured on the server")),
	), s.loadBook)

	s.mcp.AddTool(mcp.NewTool("ask_book",
		mcp.WithDescription("Ask a question about the loaded book, or request a quiz or summary. "+
			"See the "+ModesURI+" resource for modes."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The request")),
		mcp.WithString("mode", mcp.Description("auto, question, quiz or summary")),
		mcp.WithNumber("max_tokens", mcp.Description("Answer length bound (100-500)")),
	), s.askBook)

	s.mcp.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Return the numbered question and answer history of this session."),
	), s.getTranscript)

	s.mcp.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Forget the loaded book, the API key and the history."),
	), s.resetSession)

	s.mcp.AddTool(mcp.NewTool("list_cached_books",
		mcp.WithDescription("List books whose indexes are already cached."),
		mcp.WithString("filter", mcp.Description("Optional file name filter")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50)")),
	), s.listCachedBooks)

	s.mcp.AddTool(mcp.NewTool("evict_book",
		mcp.WithDescription("Drop the cached index of a book so the next load rebuilds it. "+
			"The book loaded in this session keeps working."),
		mcp.WithString("fingerprint", mcp.Required(),
			mcp.Description("Content fingerprint from load_book or list_cached_books")),
	), s.evictBook)

	s.mcp.AddResource(
		mcp.NewResource(ModesURI, "Answer Modes",
			mcp.WithResourceDescription("Modes accepted by ask_book and the outcomes it returns."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readModesResource,
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

func (s *Server) loadBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := readSource(ctx, raw, s.maxBytes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if name := req.GetString("name", ""); name != "" {
		src.name = name
	}
	cred := req.GetString("api_key", s.credential)
	if cred == "" {
		cred = s.credential
	}

	book, err := s.svc.LoadBook(ctx, s.sess, src.name, src.data, cred)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(book, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) askBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := rag.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if n := req.GetInt("max_tokens", 0); n != 0 {
		if err := s.svc.SetAnswerLimit(s.sess, n); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	out, err := s.svc.Ask(ctx, s.sess, question, mode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if out.Kind == rag.OutcomeFailed {
		return mcp.NewToolResultError(out.Text), nil
	}
	return mcp.NewToolResultText(out.Text), nil
}

func (s *Server) getTranscript(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pairs := s.sess.Transcript().Pairs()
	if len(pairs) == 0 {
		return mcp.NewToolResultText("no questions asked yet"), nil
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. Question: %s\n   Answer: %s\n", i+1, p.Question, p.Answer)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) resetSession(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.Reset(s.sess)
	return mcp.NewToolResultText("session cleared"), nil
}

func (s *Server) listCachedBooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.svc.ListBooks(ctx, req.GetInt("limit", 50), 0, req.GetString("filter", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if total == 0 {
		return mcp.NewToolResultText("no cached books"), nil
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) evictBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("fingerprint")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.svc.EvictBook(ctx, fingerprint.Fingerprint(strings.TrimSpace(raw)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := row.FileName
	if name == "" {
		name = row.Fingerprint.Short()
	}
	return mcp.NewToolResultText("evicted " + name), nil
}

func (s *Server) readModesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ModesURI,
			MIMEType: "text/markdown",
			Text:     ModesGuide(),
		},
	}, nil
}
