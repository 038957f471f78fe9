package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"textbookrag/internal/domain"
	"textbookrag/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
type Storage struct {
	url    string
	apiKey string
	client *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// StatusError is returned for any non-success response. Sample carries the
// first point of a failed upsert so the offending payload shows up in logs.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Sample     *domain.Point
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("qdrant %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	if e.Sample != nil {
		sample, _ := json.Marshal(e.Sample.Payload)
		msg += fmt.Sprintf(" (sample point %s payload %s)", e.Sample.ID, sample)
	}
	return msg
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Storage{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Storage) CreateCollection(ctx context.Context, spec vectorstore.CollectionSpec) error {
	if spec.Dimension <= 0 {
		return errors.New("invalid dimension")
	}
	distance := spec.Distance
	if distance == "" {
		distance = "Cosine"
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": distance,
		},
	}
	_, err := s.doRequest(ctx, http.MethodPut, "/collections/"+spec.Name, body)
	var se *StatusError
	if errors.As(err, &se) && alreadyExists(se) {
		return nil
	}
	return err
}

// alreadyExists recognises both the 409 documented for the REST API and the
// 400 "already exists" some Qdrant versions send instead.
func alreadyExists(se *StatusError) bool {
	if se.StatusCode == http.StatusConflict {
		return true
	}
	return se.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(se.Body), "already exists")
}

func (s *Storage) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	_, err := s.doRequest(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	var se *StatusError
	if errors.As(err, &se) {
		sample := points[0]
		se.Sample = &sample
	}
	return err
}

type searchRequest struct {
	Vector      []float32      `json:"vector"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
	Filter      map[string]any `json:"filter,omitempty"`
}

func (s *Storage) Search(ctx context.Context, collection string, q domain.Query) ([]domain.SearchResult, error) {
	ctx, span := otel.Tracer("textbookrag/vectorstore").Start(ctx, "vectorstore.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("qdrant.collection", collection),
		attribute.Int("qdrant.limit", q.Limit),
	)

	limit := q.Limit
	if limit <= 0 {
		limit = 1
	}
	req := searchRequest{
		Vector:      q.Vector,
		Limit:       limit,
		WithPayload: true,
		Filter:      FilterBody(q.Filter),
	}
	data, err := s.doRequest(ctx, http.MethodPost, "/collections/"+collection+"/points/search", req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var resp struct {
		Result []struct {
			ID      json.RawMessage `json:"id"`
			Score   float64         `json:"score"`
			Payload domain.Payload  `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			ID:      pointIDString(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	span.SetAttributes(attribute.Int("qdrant.results", len(results)))
	return results, nil
}

func (s *Storage) CollectionInfo(ctx context.Context, collection string) (vectorstore.CollectionInfo, error) {
	data, err := s.doRequest(ctx, http.MethodGet, "/collections/"+collection, nil)
	if err != nil {
		return vectorstore.CollectionInfo{}, err
	}
	var resp struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int    `json:"points_count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return vectorstore.CollectionInfo{}, fmt.Errorf("decode collection info: %w", err)
	}
	return vectorstore.CollectionInfo{
		Name:        collection,
		Status:      resp.Result.Status,
		PointsCount: resp.Result.PointsCount,
	}, nil
}

// pointIDString returns a UUID id unquoted and a numeric id in its wire digits.
func pointIDString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// FilterBody renders a domain filter in Qdrant's must/match shape. The
// chapter condition is omitted entirely when no chapter was requested.
func FilterBody(f domain.Filter) map[string]any {
	must := []map[string]any{
		matchFilter("class", f.Class),
		matchFilter("subject", f.Subject),
	}
	if f.ContentType != "" {
		must = append(must, matchFilter("content_type", string(f.ContentType)))
	}
	if f.Chapter != nil {
		must = append(must, matchFilter("chapter", *f.Chapter))
	}
	return map[string]any{"must": must}
}

func matchFilter(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func (s *Storage) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}
