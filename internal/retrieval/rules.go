package retrieval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mode selects which collections a question is answered from.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
)

// Rules is the routing rule table: keywords that mark a question as being
// about a figure, and the pattern that pulls a chapter number out of it.
type Rules struct {
	ImageKeywords  []string
	ChapterPattern *regexp.Regexp
}

// NewRules compiles the chapter pattern. The pattern must have one capture
// group holding the chapter digits.
func NewRules(keywords []string, chapterPattern string) (Rules, error) {
	re, err := regexp.Compile(chapterPattern)
	if err != nil {
		return Rules{}, fmt.Errorf("compile chapter pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return Rules{}, fmt.Errorf("chapter pattern %q has no capture group", chapterPattern)
	}
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return Rules{ImageKeywords: lower, ChapterPattern: re}, nil
}

// Classify returns ModeImage when the lower-cased question contains any
// image keyword as a substring.
func (r Rules) Classify(question string) Mode {
	q := strings.ToLower(question)
	for _, k := range r.ImageKeywords {
		if strings.Contains(q, k) {
			return ModeImage
		}
	}
	return ModeText
}

// ExtractChapter returns the first chapter number mentioned in question.
func (r Rules) ExtractChapter(question string) (int, bool) {
	if r.ChapterPattern == nil {
		return 0, false
	}
	m := r.ChapterPattern.FindStringSubmatch(question)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
