package prompt

import (
	"fmt"
	"sort"
	"strings"

	"textbookrag/internal/domain"
	"textbookrag/internal/retrieval"
	"textbookrag/internal/summarizer"
)

// Assembler renders retrieval results into the prompt sent to the answer
// service. The same inputs always produce the same bytes.
type Assembler struct {
	maxPageChars int
	condenser    *summarizer.FrequencySummarizer
}

// NewAssembler returns an Assembler that condenses page text longer than
// maxPageChars runes. Zero keeps pages whole.
func NewAssembler(maxPageChars int) *Assembler {
	return &Assembler{maxPageChars: maxPageChars, condenser: summarizer.NewFrequencySummarizer()}
}

// Build picks the template that matches the retrieval mode.
func (a *Assembler) Build(subject, question string, r *retrieval.Retrieval) string {
	if r.Mode == retrieval.ModeImage {
		return a.ImagePrompt(subject, question, r.Images, r.Texts)
	}
	return a.TextPrompt(subject, question, r.Texts)
}

// TextPrompt lists each text result as a labelled block, in store order.
func (a *Assembler) TextPrompt(subject, question string, texts []domain.SearchResult) string {
	blocks := make([]string, 0, len(texts))
	for _, r := range texts {
		blocks = append(blocks, fmt.Sprintf("[Chapter %d – Page %d]\n%s", r.Payload.Chapter, r.Payload.PageNumber, a.pageText(r)))
	}
	var b strings.Builder
	b.WriteString(persona(subject))
	b.WriteString("\n\nAnswer the question using ONLY the textbook content below.\nTEXTBOOK CONTENT:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	writeQuestion(&b, question)
	return b.String()
}

// ImagePrompt lists the distinct diagram pages in ascending order, then the
// text of only those pages. Diagrams without an indexed text page are
// listed but not explained.
func (a *Assembler) ImagePrompt(subject, question string, images, texts []domain.SearchResult) string {
	pages := DiagramPages(images)
	inSet := make(map[int]bool, len(pages))
	lines := make([]string, 0, len(pages))
	for _, p := range pages {
		inSet[p] = true
		lines = append(lines, fmt.Sprintf("- Diagram on Page %d", p))
	}
	var blocks []string
	for _, r := range texts {
		if inSet[r.Payload.PageNumber] {
			blocks = append(blocks, fmt.Sprintf("[Page %d]\n%s", r.Payload.PageNumber, a.pageText(r)))
		}
	}
	var b strings.Builder
	b.WriteString(persona(subject))
	b.WriteString("\n\nExplain what is shown in the diagram(s) using ONLY the textbook content below.\n\nDIAGRAM PAGES:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nTEXTBOOK EXPLANATION:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	writeQuestion(&b, question)
	return b.String()
}

// DiagramPages returns the distinct page numbers of image results, ascending.
func DiagramPages(images []domain.SearchResult) []int {
	seen := make(map[int]bool, len(images))
	var pages []int
	for _, img := range images {
		p := img.Payload.PageNumber
		if !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}
	sort.Ints(pages)
	return pages
}

func (a *Assembler) pageText(r domain.SearchResult) string {
	return a.condenser.Condense(r.Payload.Text, a.maxPageChars)
}

func persona(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	if s == "" {
		return "You are a teacher."
	}
	return fmt.Sprintf("You are a %s teacher.", s)
}

func writeQuestion(b *strings.Builder, question string) {
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nANSWER:")
}
