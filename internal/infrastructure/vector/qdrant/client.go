package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/resilience"
)

const (
	serviceName = "qdrant"

	denseVectorName  = "dense"
	sparseVectorName = "text-sparse"
)

// Client talks to one Qdrant collection holding a named dense vector and a
// named sparse vector per chunk.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// IndexCandidates upserts candidates with their dense vectors. The sparse
// vector is derived from title and text.
func (c *Client) IndexCandidates(ctx context.Context, candidates []domain.Candidate, vectors [][]float32) error {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) != len(vectors) {
		return fmt.Errorf("candidates/vectors mismatch: %d vs %d", len(candidates), len(vectors))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(candidates))
	for i, cand := range candidates {
		payload := map[string]any{
			"candidate_id":  cand.ID,
			"parent_id":     cand.GroupKey(),
			"text":          cand.Text,
			"url":           cand.SourceURL,
			"title":         cand.Title,
			"date":          cand.Date,
			"document_type": cand.DocumentType,
		}
		if cand.ChunkIndex != nil {
			payload["chunk_index"] = *cand.ChunkIndex
			payload["total_chunks"] = *cand.TotalChunks
		}
		points = append(points, point{
			ID: pointID(cand.ID),
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: encodeSparseDocument(cand.Text, cand.Title),
			},
			Payload: payload,
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
}

// SearchDense runs a nearest-neighbour query on the dense vector.
func (c *Client) SearchDense(ctx context.Context, vector []float32, limit int) ([]scoredPoint, error) {
	return c.search(ctx, map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}, "search")
}

// SearchSparse runs a lexical query on the sparse vector.
func (c *Client) SearchSparse(ctx context.Context, vector sparseVector, limit int) ([]scoredPoint, error) {
	if len(vector.Indices) == 0 {
		return nil, nil
	}
	return c.search(ctx, map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}, "search_sparse")
}

func (c *Client) search(ctx context.Context, body map[string]any, operation string) ([]scoredPoint, error) {
	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPost, url, body, &searchResp, operation); err != nil {
		return nil, err
	}
	return searchResp.Result, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{"modifier": "idf"},
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure_collection")
	if err != nil {
		var statusErr *resilience.HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusConflict {
			return err
		}
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError(serviceName, operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// pointID maps arbitrary candidate ids onto the UUIDs Qdrant accepts.
func pointID(candidateID string) string {
	if _, err := uuid.Parse(candidateID); err == nil {
		return candidateID
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(candidateID)).String()
}
