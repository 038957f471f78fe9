package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"textbookrag/internal/domain"
	"textbookrag/internal/prompt"
	"textbookrag/internal/retrieval"
)

// ErrEmptyQuestion is returned for blank questions before any search runs.
var ErrEmptyQuestion = errors.New("service: empty question")

// Request is one user question scoped to a class and subject.
type Request struct {
	Question string
	Class    int
	Subject  string
}

// Answer carries the generated text together with the prompt and the
// retrieval it was grounded on.
type Answer struct {
	Text      string
	Prompt    string
	Retrieval *retrieval.Retrieval
}

// QAService runs one question through route, assemble and generate.
type QAService struct {
	router    *retrieval.Router
	assembler *prompt.Assembler
	generator domain.AnswerGenerator
	log       *slog.Logger
}

// NewQAService wires the query path. generator may be nil when only prompts
// are needed.
func NewQAService(router *retrieval.Router, assembler *prompt.Assembler, generator domain.AnswerGenerator, log *slog.Logger) *QAService {
	if log == nil {
		log = slog.Default()
	}
	return &QAService{router: router, assembler: assembler, generator: generator, log: log}
}

// BuildPrompt retrieves grounding for req and assembles the prompt without
// calling the answer service. retrieval.ErrNoGrounding is returned as is.
func (s *QAService) BuildPrompt(ctx context.Context, req Request) (string, *retrieval.Retrieval, error) {
	q := strings.TrimSpace(req.Question)
	if q == "" {
		return "", nil, ErrEmptyQuestion
	}
	r, err := s.router.Route(ctx, retrieval.Request{Question: q, Class: req.Class, Subject: req.Subject})
	if err != nil {
		return "", nil, err
	}
	return s.assembler.Build(req.Subject, q, r), r, nil
}

// Ask answers req. When nothing relevant is indexed it returns
// retrieval.ErrNoGrounding and the answer service is not called.
func (s *QAService) Ask(ctx context.Context, req Request) (*Answer, error) {
	if s.generator == nil {
		return nil, errors.New("service: no answer generator configured")
	}
	p, r, err := s.BuildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	text, err := s.generator.Generate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("answer %q: %w", req.Question, err)
	}
	s.log.Info("answered question", "mode", r.Mode, "images", len(r.Images), "texts", len(r.Texts))
	return &Answer{Text: text, Prompt: p, Retrieval: r}, nil
}
