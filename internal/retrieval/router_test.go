package retrieval

import (
	"context"
	"errors"
	"testing"

	"textbookrag/internal/config"
	"textbookrag/internal/domain"
	"textbookrag/internal/embedding/hashing"
	"textbookrag/internal/logger"
)

type call struct {
	collection string
	query      domain.Query
}

type fakeSearcher struct {
	calls   []call
	results map[string][]domain.SearchResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, collection string, q domain.Query) ([]domain.SearchResult, error) {
	f.calls = append(f.calls, call{collection: collection, query: q})
	if f.err != nil {
		return nil, f.err
	}
	return f.results[collection], nil
}

func defaultRules(t *testing.T) Rules {
	t.Helper()
	cfg, err := config.Load(t.TempDir() + "/none.yaml")
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRules(cfg.Retrieval.ImageKeywords, cfg.Retrieval.ChapterPattern)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newTestRouter(t *testing.T, s Searcher) *Router {
	return NewRouter(s, hashing.NewTextEmbedder(8), hashing.NewImageEmbedder(4), defaultRules(t),
		Config{TextCollection: "text_pages", ImageCollection: "page_images", TopKText: 1, TopKImages: 1}, logger.Discard())
}

func TestRules_Classify(t *testing.T) {
	r := defaultRules(t)
	tests := []struct {
		q    string
		want Mode
	}{
		{"What is shown in the diagram in chapter 3?", ModeImage},
		{"Explain the FIGURE of the heart", ModeImage},
		{"What is photosynthesis?", ModeText},
		{"Describe the pictured apparatus", ModeImage},
	}
	for _, tt := range tests {
		if got := r.Classify(tt.q); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.q, got, tt.want)
		}
	}
}

func TestRules_ExtractChapter(t *testing.T) {
	r := defaultRules(t)
	tests := []struct {
		q      string
		want   int
		wantOK bool
	}{
		{"what is in chapter 5", 5, true},
		{"Chapter12 summary", 12, true},
		{"CHAPTER 0 intro", 0, true},
		{"chapter 3 and chapter 4", 3, true},
		{"what is a cell", 0, false},
		{"chapter five", 0, false},
	}
	for _, tt := range tests {
		got, ok := r.ExtractChapter(tt.q)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ExtractChapter(%q) = %d,%v want %d,%v", tt.q, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNewRules_RejectsPatternWithoutGroup(t *testing.T) {
	if _, err := NewRules([]string{"image"}, `chapter\s*\d+`); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewRules([]string{"image"}, `(`); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestRoute_ImageModeWithChapterFilter(t *testing.T) {
	s := &fakeSearcher{results: map[string][]domain.SearchResult{
		"page_images": {{ID: "i1", Payload: domain.Payload{Chapter: 3, PageNumber: 4, ContentType: domain.ContentPageImage}}},
		"text_pages":  {{ID: "t1", Payload: domain.Payload{Chapter: 3, PageNumber: 4, ContentType: domain.ContentPageText, Text: "leaf"}}},
	}}
	got, err := newTestRouter(t, s).Route(context.Background(), Request{Question: "What is shown in the diagram in chapter 3?", Class: 10, Subject: "Science"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != ModeImage || got.Chapter == nil || *got.Chapter != 3 {
		t.Fatalf("unexpected routing %+v", got)
	}
	if len(s.calls) != 2 || s.calls[0].collection != "page_images" || s.calls[1].collection != "text_pages" {
		t.Fatalf("unexpected calls %+v", s.calls)
	}
	img := s.calls[0].query
	if img.Filter.ContentType != domain.ContentPageImage || *img.Filter.Chapter != 3 || img.Filter.Class != 10 || img.Filter.Subject != "Science" || img.Limit != 1 {
		t.Fatalf("unexpected image query %+v", img)
	}
	if len(img.Vector) != 4 {
		t.Fatalf("image query should use the image embedder, got dim %d", len(img.Vector))
	}
	txt := s.calls[1].query
	if txt.Filter.ContentType != domain.ContentPageText || *txt.Filter.Chapter != 3 || len(txt.Vector) != 8 {
		t.Fatalf("unexpected text query %+v", txt)
	}
}

func TestRoute_NoChapterMeansNoChapterCondition(t *testing.T) {
	s := &fakeSearcher{results: map[string][]domain.SearchResult{
		"text_pages": {{ID: "t1"}},
	}}
	got, err := newTestRouter(t, s).Route(context.Background(), Request{Question: "What is photosynthesis?", Class: 10, Subject: "Science"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != ModeText || got.Chapter != nil || len(got.Images) != 0 {
		t.Fatalf("unexpected routing %+v", got)
	}
	if len(s.calls) != 1 || s.calls[0].query.Filter.Chapter != nil {
		t.Fatalf("expected a single unfiltered-by-chapter text search, got %+v", s.calls)
	}
}

func TestRoute_EmptyImageResultSkipsTextSearch(t *testing.T) {
	s := &fakeSearcher{results: map[string][]domain.SearchResult{
		"text_pages": {{ID: "t1"}},
	}}
	_, err := newTestRouter(t, s).Route(context.Background(), Request{Question: "show me the picture", Class: 10, Subject: "Science"})
	if !errors.Is(err, ErrNoGrounding) {
		t.Fatalf("expected ErrNoGrounding, got %v", err)
	}
	if len(s.calls) != 1 {
		t.Fatalf("text search must not run after an empty image search, got %d calls", len(s.calls))
	}
}

func TestRoute_EmptyTextResult(t *testing.T) {
	s := &fakeSearcher{results: map[string][]domain.SearchResult{}}
	_, err := newTestRouter(t, s).Route(context.Background(), Request{Question: "what is a cell", Class: 10, Subject: "Science"})
	if !errors.Is(err, ErrNoGrounding) {
		t.Fatalf("expected ErrNoGrounding, got %v", err)
	}
}

func TestRoute_StoreErrorIsNotNoGrounding(t *testing.T) {
	s := &fakeSearcher{err: errors.New("connection refused")}
	_, err := newTestRouter(t, s).Route(context.Background(), Request{Question: "what is a cell", Class: 10, Subject: "Science"})
	if err == nil || errors.Is(err, ErrNoGrounding) {
		t.Fatalf("expected a store error, got %v", err)
	}
}
