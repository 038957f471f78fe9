package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Layout describes an extracted textbook on disk:
//
//	<BaseDir>/<ChapterPrefix><N>/<TextDir>/page_<N>.txt
//	<BaseDir>/<ChapterPrefix><N>/<ImageDir>/page_<N>_img_<M>.png
type Layout struct {
	BaseDir       string
	ChapterPrefix string
	TextDir       string
	ImageDir      string
	ImageGlobs    []string
}

// Chapter is one chapter directory with its number parsed from the name.
type Chapter struct {
	Name   string
	Number int
	Dir    string
}

// Item is one page file inside a chapter. ImageIndex is -1 for text pages
// and for images named without an _img_ suffix.
type Item struct {
	Path       string
	FileName   string
	Chapter    int
	Page       int
	ImageIndex int
}

var (
	textPageRe  = regexp.MustCompile(`^page_(\d+)\.txt$`)
	imagePageRe = regexp.MustCompile(`^page_(\d+)(?:_img_(\d+))?\.[A-Za-z0-9]+$`)
)

// ParseChapterDir extracts N from "<prefix>N". Anything else is not a chapter.
func ParseChapterDir(name, prefix string) (int, bool) {
	if prefix == "" || !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	rest := name[len(prefix):]
	if rest == "" || strings.TrimLeft(rest, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseTextPage extracts the page number from "page_<N>.txt".
func ParseTextPage(filename string) (int, bool) {
	m := textPageRe.FindStringSubmatch(filename)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseImagePage extracts the page number and optional image index from
// "page_<N>.<ext>" or "page_<N>_img_<M>.<ext>".
func ParseImagePage(filename string) (page, index int, ok bool) {
	m := imagePageRe.FindStringSubmatch(filename)
	if m == nil {
		return 0, 0, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	index = -1
	if m[2] != "" {
		if index, err = strconv.Atoi(m[2]); err != nil {
			return 0, 0, false
		}
	}
	return page, index, true
}

// Chapters lists chapter directories in lexicographic order. Entries that do
// not follow the chapter naming convention are returned in skipped.
func (l Layout) Chapters() (chapters []Chapter, skipped []string, err error) {
	entries, err := os.ReadDir(l.BaseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read content source %s: %w", l.BaseDir, err)
	}
	// os.ReadDir sorts by filename.
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, ok := ParseChapterDir(e.Name(), l.ChapterPrefix)
		if !ok {
			skipped = append(skipped, e.Name())
			continue
		}
		chapters = append(chapters, Chapter{Name: e.Name(), Number: n, Dir: filepath.Join(l.BaseDir, e.Name())})
	}
	return chapters, skipped, nil
}

// TextPages lists page_<N>.txt files of a chapter. A chapter without a text
// directory yields nothing.
func (l Layout) TextPages(ch Chapter) (items []Item, skipped []string, err error) {
	names, err := listFiles(filepath.Join(ch.Dir, l.TextDir))
	if err != nil || names == nil {
		return nil, nil, err
	}
	for _, name := range names {
		page, ok := ParseTextPage(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		items = append(items, Item{
			Path:       filepath.Join(ch.Dir, l.TextDir, name),
			FileName:   name,
			Chapter:    ch.Number,
			Page:       page,
			ImageIndex: -1,
		})
	}
	return items, skipped, nil
}

// Images lists image files of a chapter that match ImageGlobs and the page
// naming pattern.
func (l Layout) Images(ch Chapter) (items []Item, skipped []string, err error) {
	names, err := listFiles(filepath.Join(ch.Dir, l.ImageDir))
	if err != nil || names == nil {
		return nil, nil, err
	}
	for _, name := range names {
		if !l.matchesImageGlob(name) {
			skipped = append(skipped, name)
			continue
		}
		page, idx, ok := ParseImagePage(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		items = append(items, Item{
			Path:       filepath.Join(ch.Dir, l.ImageDir, name),
			FileName:   name,
			Chapter:    ch.Number,
			Page:       page,
			ImageIndex: idx,
		})
	}
	return items, skipped, nil
}

func (l Layout) matchesImageGlob(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range l.ImageGlobs {
		if ok, _ := doublestar.Match(strings.ToLower(pattern), lower); ok {
			return true
		}
	}
	return false
}

// listFiles returns sorted regular file names, or nil if dir does not exist.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
