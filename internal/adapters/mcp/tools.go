package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("retrieve",
		mcp.WithDescription("Search the knowledge base with hybrid semantic and keyword retrieval. Returns ranked passages with search metadata."),
		mcp.WithString("question", mcp.Required(), mcp.Description("the user question")),
		mcp.WithNumber("keyword_weight", mcp.Description("weight of the keyword signal in [0,1]; semantic weight defaults to its complement")),
		mcp.WithNumber("semantic_weight", mcp.Description("weight of the semantic signal")),
		mcp.WithNumber("max_results", mcp.Description("maximum documents to return")),
		mcp.WithString("retrieval_id", mcp.Description("optional id for later reweighting")),
	), s.handleRetrieve)

	s.server.AddTool(mcp.NewTool("reweight",
		mcp.WithDescription("Re-rank a previous retrieval with a new keyword weight without searching again."),
		mcp.WithString("retrieval_id", mcp.Required(), mcp.Description("id returned by retrieve")),
		mcp.WithNumber("keyword_weight", mcp.Required(), mcp.Description("new keyword weight in [0,1]")),
		mcp.WithNumber("semantic_weight", mcp.Description("explicit semantic weight; defaults to 1 - keyword_weight")),
	), s.handleReweight)
}

func (s *Server) handleRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.retrieval.Retrieve(ctx, domain.RetrievalRequest{
		RetrievalID:    req.GetString("retrieval_id", ""),
		Question:       question,
		SemanticWeight: optionalFloat(req, "semantic_weight"),
		KeywordWeight:  optionalFloat(req, "keyword_weight"),
		MaxResults:     req.GetInt("max_results", 0),
	})
	return toolResult("retrieve", resp, err)
}

func (s *Server) handleReweight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	retrievalID, err := req.RequireString("retrieval_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	keywordWeight, err := req.RequireFloat("keyword_weight")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.retrieval.Reweight(ctx, domain.ReweightRequest{
		RetrievalID:    retrievalID,
		KeywordWeight:  keywordWeight,
		SemanticWeight: optionalFloat(req, "semantic_weight"),
	})
	return toolResult("reweight", resp, err)
}

// toolResult reports domain failures as tool errors so the calling model
// sees them. Only encoding failures are protocol errors.
func toolResult(tool string, resp *domain.RetrievalResponse, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", tool, "error", err.Error())
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// optionalFloat returns nil when the argument is absent.
func optionalFloat(req mcp.CallToolRequest, key string) *float64 {
	if _, ok := req.GetArguments()[key]; !ok {
		return nil
	}
	v := req.GetFloat(key, 0)
	return &v
}
