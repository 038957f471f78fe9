package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"textbookrag/internal/domain"
	"textbookrag/internal/embedding/hashing"
	"textbookrag/internal/ingest"
	"textbookrag/internal/logger"
	"textbookrag/internal/prompt"
	"textbookrag/internal/retrieval"
	"textbookrag/internal/source"
	"textbookrag/internal/vectorstore"
	"textbookrag/internal/vectorstore/memory"
)

const photosynthesis = "Photosynthesis converts light energy into chemical energy. Green plants use chlorophyll in their leaves to make glucose."

type recordingGenerator struct {
	prompts []string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, p string) (string, error) {
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return "", g.err
	}
	return "It shows a leaf.", nil
}

type fixture struct {
	store *memory.Storage
	svc   *QAService
	gen   *recordingGenerator
}

func newFixture(t *testing.T, base string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStorage()
	textEmb := hashing.NewTextEmbedder(384)
	imageEmb := hashing.NewImageEmbedder(512)
	for _, spec := range []vectorstore.CollectionSpec{
		{Name: "text_pages", Dimension: 384, Distance: "Cosine"},
		{Name: "page_images", Dimension: 512, Distance: "Cosine"},
	} {
		if err := store.CreateCollection(ctx, spec); err != nil {
			t.Fatal(err)
		}
	}

	layout := source.Layout{BaseDir: base, ChapterPrefix: "chapter", TextDir: "page_text", ImageDir: "images", ImageGlobs: []string{"*.png"}}
	opts := func(name string, dim, batch int) ingest.Options {
		return ingest.Options{Collection: name, Dimension: dim, Class: 10, Subject: "Science", BatchSize: batch,
			IDStrategy: "deterministic", LockDir: t.TempDir(), Log: logger.Discard()}
	}
	if _, err := ingest.NewTextPipeline(layout, store, textEmb, 50, opts("text_pages", 384, 50)).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := ingest.NewImagePipeline(layout, store, imageEmb, 120, 120, opts("page_images", 512, 16)).Run(ctx); err != nil {
		t.Fatal(err)
	}

	rules, err := retrieval.NewRules([]string{"image", "diagram", "picture", "figure", "illustration", "shown"}, `(?i)chapter\s*(\d+)`)
	if err != nil {
		t.Fatal(err)
	}
	router := retrieval.NewRouter(store, textEmb, imageEmb, rules,
		retrieval.Config{TextCollection: "text_pages", ImageCollection: "page_images", TopKText: 1, TopKImages: 1}, logger.Discard())
	gen := &recordingGenerator{}
	return &fixture{store: store, gen: gen, svc: NewQAService(router, prompt.NewAssembler(4000), gen, logger.Discard())}
}

func writeChapter3(t *testing.T, base string) {
	t.Helper()
	textPath := filepath.Join(base, "chapter3", "page_text", "page_42.txt")
	if err := os.MkdirAll(filepath.Dir(textPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(textPath, []byte(photosynthesis), 0o644); err != nil {
		t.Fatal(err)
	}
	imgPath := filepath.Join(base, "chapter3", "images", "page_42_img_1.png")
	if err := os.MkdirAll(filepath.Dir(imgPath), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{G: uint8(x), B: uint8(y), A: 255})
		}
	}
	f, err := os.Create(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestAsk_DiagramInChapter3(t *testing.T) {
	if len(photosynthesis) != 120 {
		t.Fatalf("fixture text should be 120 characters, is %d", len(photosynthesis))
	}
	base := t.TempDir()
	writeChapter3(t, base)
	fx := newFixture(t, base)

	ans, err := fx.svc.Ask(context.Background(), Request{Question: "What is shown in the diagram in chapter 3?", Class: 10, Subject: "Science"})
	if err != nil {
		t.Fatal(err)
	}
	r := ans.Retrieval
	if r.Mode != retrieval.ModeImage || r.Chapter == nil || *r.Chapter != 3 {
		t.Fatalf("unexpected routing %+v", r)
	}
	if len(r.Images) != 1 || r.Images[0].Payload.FileName != "page_42_img_1.png" || r.Images[0].Payload.ContentType != domain.ContentPageImage {
		t.Fatalf("unexpected image results %+v", r.Images)
	}
	if !strings.Contains(ans.Prompt, "- Diagram on Page 42") {
		t.Fatalf("prompt should list the diagram page:\n%s", ans.Prompt)
	}
	if !strings.Contains(ans.Prompt, "[Page 42]\n"+photosynthesis) {
		t.Fatalf("prompt should explain the page:\n%s", ans.Prompt)
	}
	if ans.Text != "It shows a leaf." || len(fx.gen.prompts) != 1 || fx.gen.prompts[0] != ans.Prompt {
		t.Fatalf("generator not called with the prompt: %+v", fx.gen.prompts)
	}
}

func TestAsk_OtherChapterHasNoGrounding(t *testing.T) {
	base := t.TempDir()
	writeChapter3(t, base)
	fx := newFixture(t, base)

	_, err := fx.svc.Ask(context.Background(), Request{Question: "Explain the figure in chapter 4", Class: 10, Subject: "Science"})
	if !errors.Is(err, retrieval.ErrNoGrounding) {
		t.Fatalf("expected ErrNoGrounding, got %v", err)
	}
	if len(fx.gen.prompts) != 0 {
		t.Fatal("answer service must not be called without grounding")
	}
}

func TestAsk_TextQuestion(t *testing.T) {
	base := t.TempDir()
	writeChapter3(t, base)
	fx := newFixture(t, base)

	ans, err := fx.svc.Ask(context.Background(), Request{Question: "How do plants make glucose?", Class: 10, Subject: "Science"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Retrieval.Mode != retrieval.ModeText {
		t.Fatalf("mode = %s", ans.Retrieval.Mode)
	}
	if !strings.Contains(ans.Prompt, "[Chapter 3 – Page 42]\n"+photosynthesis) {
		t.Fatalf("unexpected prompt:\n%s", ans.Prompt)
	}
}

func TestAsk_WrongSubjectHasNoGrounding(t *testing.T) {
	base := t.TempDir()
	writeChapter3(t, base)
	fx := newFixture(t, base)

	_, err := fx.svc.Ask(context.Background(), Request{Question: "What is photosynthesis?", Class: 10, Subject: "History"})
	if !errors.Is(err, retrieval.ErrNoGrounding) {
		t.Fatalf("expected ErrNoGrounding, got %v", err)
	}
}

func TestAsk_GeneratorErrorIsWrapped(t *testing.T) {
	base := t.TempDir()
	writeChapter3(t, base)
	fx := newFixture(t, base)
	boom := errors.New("upstream 502")
	fx.gen.err = boom

	_, err := fx.svc.Ask(context.Background(), Request{Question: "What is photosynthesis?", Class: 10, Subject: "Science"})
	if !errors.Is(err, boom) || errors.Is(err, retrieval.ErrNoGrounding) {
		t.Fatalf("expected wrapped generator error, got %v", err)
	}
}

func TestBuildPrompt_EmptyQuestion(t *testing.T) {
	fx := newFixture(t, t.TempDir())
	if _, _, err := fx.svc.BuildPrompt(context.Background(), Request{Question: "   ", Class: 10, Subject: "Science"}); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}
