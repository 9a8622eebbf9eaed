// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the folio index and build over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/storage"
)

// ContractURI is the resource URI of the post format contract.
const ContractURI = "folio://post-format"

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *postservice.Service
	media storage.Provider
}

// New creates a new MCP server with all folio tools registered. media is
// the output media directory used by upload_asset; nil disables the tool.
func New(svc *postservice.Service, media storage.Provider, version string) *Server {
	s := &Server{svc: svc, media: media}

	s.mcp = server.NewMCPServer(
		"folio",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List indexed posts, newest first."),
		mcp.WithString("tag", mcp.Description("Optional tag filter (case-insensitive)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
		mcp.WithBoolean("archived", mcp.Description("Include archived posts")),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Read an indexed post: metadata plus the current source."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Post id (the source file stem)")),
	), s.getPost)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag with the number of posts carrying it."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Create a new post source at the specified path. "+
			"Content MUST follow the post format contract. Read it first via "+
			"the get_post_contract tool or the "+ContractURI+" resource. "+
			"The post is published by the next build."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new post (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the post format contract")),
	), s.createPost)

	s.mcp.AddTool(mcp.NewTool("update_post",
		mcp.WithDescription("Replace the source of an indexed post."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
		mcp.WithString("if_match", mcp.Description("Checksum from get_post; the update fails if the source changed since")),
	), s.updatePost)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the folio post format contract. "+
			"Call this before creating or updating posts to ensure correct structure."),
	), s.getPostContract)

	s.mcp.AddTool(mcp.NewTool("build",
		mcp.WithDescription("Run an incremental build and return the report."),
		mcp.WithBoolean("force", mcp.Description("Re-render every post")),
	), s.build)

	if media != nil {
		s.mcp.AddTool(mcp.NewTool("upload_asset",
			mcp.WithDescription("Store an image or PDF in the media directory from a data: URI or an http(s) URL."),
			mcp.WithString("url", mcp.Required(), mcp.Description("data: URI (base64) or http(s) URL")),
			mcp.WithString("filename", mcp.Description("Optional target file name")),
		), s.uploadAsset)
	}

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Post Format Contract",
			mcp.WithResourceDescription("Source format that all posts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
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

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult turns a service error into a tool error message.
func errorResult(err error, subject string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", subject))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("already exists: %s", subject))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("checksum mismatch: %s changed since it was read", subject))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListPosts(ctx,
		req.GetInt("limit", 0),
		req.GetInt("offset", 0),
		req.GetString("tag", ""),
		req.GetBool("archived", false),
	)
	if err != nil {
		return errorResult(err, "posts"), nil
	}
	return jsonResult(map[string]any{"posts": items, "total": total})
}

func (s *Server) getPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.GetPost(ctx, id)
	if err != nil {
		return errorResult(err, id), nil
	}
	return jsonResult(post)
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.ListTags(ctx)
	if err != nil {
		return errorResult(err, "tags"), nil
	}
	return jsonResult(tags)
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := s.svc.CreatePost(ctx, path, []byte(content))
	if err != nil {
		return errorResult(err, path), nil
	}
	return jsonResult(src)
}

func (s *Server) updatePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := s.svc.UpdatePost(ctx, id, []byte(content), req.GetString("if_match", ""))
	if err != nil {
		return errorResult(err, id), nil
	}
	return jsonResult(src)
}

func (s *Server) build(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.svc.Build(ctx, req.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}
	return jsonResult(summary)
}

func (s *Server) getPostContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
