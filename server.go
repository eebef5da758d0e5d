package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamma-omg/docsearch/docstore"
	"github.com/gamma-omg/docsearch/pipeline"
	"github.com/gamma-omg/docsearch/ranking"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type docSearcher interface {
	Search(ctx context.Context, query string, scope pipeline.Scope, topK int) ([]ranking.Result, error)
	Suggest(ctx context.Context, q string) ([]pipeline.Suggestion, error)
	PastQueries(ctx context.Context, q string, limit int) ([]string, error)
	PopularQueries(ctx context.Context, limit int) ([]docstore.QueryCount, error)
}

type docFinder interface {
	FindDocuments(ctx context.Context, q docstore.DocumentQuery) ([]docstore.Document, error)
	Projects(ctx context.Context) ([]string, error)
}

type chunkLister interface {
	Chunks(ctx context.Context, docID string) ([]docstore.Chunk, error)
}

type docSearchTools struct {
	log      *slog.Logger
	searcher docSearcher
	finder   docFinder
	chunks   chunkLister
	topK     int
}

func NewDocSearchServer(log *slog.Logger, searcher docSearcher, finder docFinder, chunks chunkLister, topK int) *server.MCPServer {
	tools := &docSearchTools{
		log:      log,
		searcher: searcher,
		finder:   finder,
		chunks:   chunks,
		topK:     topK,
	}

	srv := server.NewMCPServer("DocSearch", "0.1.0", server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search the uploaded documents and return the best matching passages"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("project",
			mcp.Description("Only search documents of this project"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of passages to return"),
		),
	), tools.search)

	srv.AddTool(mcp.NewTool("suggest",
		mcp.WithDescription("Suggest passages for a partially typed query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Partial query, at least two characters"),
		),
	), tools.suggest)

	srv.AddTool(mcp.NewTool("documents",
		mcp.WithDescription("List uploaded documents"),
		mcp.WithString("text", mcp.Description("Match file names or content containing this text")),
		mcp.WithString("project", mcp.Description("Only list documents of this project")),
		mcp.WithString("format", mcp.Description("Only list documents of this format: pdf, docx, pptx or plain_text")),
		mcp.WithString("sort", mcp.Description("newest or oldest"), mcp.Enum(string(docstore.SortNewest), string(docstore.SortOldest))),
		mcp.WithNumber("offset", mcp.Description("Number of documents to skip")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of documents to return")),
	), tools.documents)

	srv.AddTool(mcp.NewTool("document_chunks",
		mcp.WithDescription("Return the chunks of a document in order"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document id"),
		),
	), tools.documentChunks)

	srv.AddTool(mcp.NewTool("popular_queries",
		mcp.WithDescription("Return the most frequent search queries"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of queries to return")),
	), tools.popularQueries)

	srv.AddTool(mcp.NewTool("past_queries",
		mcp.WithDescription("Return earlier search queries containing the given text, most recent first"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to look for, at least two characters"),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum number of queries to return")),
	), tools.pastQueries)

	srv.AddTool(mcp.NewTool("projects",
		mcp.WithDescription("List the projects that have documents"),
	), tools.projects)

	return srv
}

func (t *docSearchTools) search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	scope := pipeline.Scope{Project: request.GetString("project", "")}
	res, err := t.searcher.Search(ctx, q, scope, request.GetInt("top_k", t.topK))
	if err != nil {
		t.log.Error("search failed", "query", q, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonLines(res)
}

func (t *docSearchTools) suggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.searcher.Suggest(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonLines(res)
}

func (t *docSearchTools) documents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := t.finder.FindDocuments(ctx, docstore.DocumentQuery{
		Text:    request.GetString("text", ""),
		Project: request.GetString("project", ""),
		Format:  request.GetString("format", ""),
		Sort:    docstore.SortOrder(request.GetString("sort", string(docstore.SortNewest))),
		Offset:  request.GetInt("offset", 0),
		Limit:   request.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonLines(docs)
}

func (t *docSearchTools) documentChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	chunks, err := t.chunks.Chunks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonLines(chunks)
}

func (t *docSearchTools) popularQueries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.searcher.PopularQueries(ctx, request.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonLines(res)
}

func (t *docSearchTools) pastQueries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.searcher.PastQueries(ctx, q, request.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonLines(res)
}

func (t *docSearchTools) projects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.finder.Projects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonLines(res)
}

// jsonLines renders items as one JSON object per line.
func jsonLines[T any](items []T) (*mcp.CallToolResult, error) {
	var response strings.Builder
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		fmt.Fprintf(&response, "%s\n", raw)
	}

	return mcp.NewToolResultText(response.String()), nil
}
