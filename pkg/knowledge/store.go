// Package knowledge serves answers from a local markdown corpus. The
// store is loaded once at startup; retrieval is keyword scoring over
// paragraphs, good enough to ground an LLM synthesis step.
package knowledge

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Document is one markdown file in the corpus.
type Document struct {
	Path    string
	Title   string
	Content string
}

// Snippet is one retrieved paragraph with its source.
type Snippet struct {
	Source string
	Text   string
	Score  float64
}

// Store holds the loaded corpus.
type Store struct {
	dir  string
	docs []Document
}

// Open loads every .md file under dir. An empty corpus is not an
// error; a missing directory is.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge dir %q is not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(raw)
		docs = append(docs, Document{
			Path:    path,
			Title:   docTitle(d.Name(), content),
			Content: content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return &Store{dir: dir, docs: docs}, nil
}

// Len reports the number of loaded documents.
func (s *Store) Len() int { return len(s.docs) }

// Search returns the highest scoring paragraphs for the query, at
// most limit of them.
func (s *Store) Search(query string, limit int) []Snippet {
	if limit <= 0 {
		limit = 3
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var snippets []Snippet
	for _, doc := range s.docs {
		for _, para := range splitParagraphs(doc.Content) {
			score := scoreParagraph(para, terms)
			if score <= 0 {
				continue
			}
			snippets = append(snippets, Snippet{
				Source: doc.Title,
				Text:   para,
				Score:  score,
			})
		}
	}
	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })
	if len(snippets) > limit {
		snippets = snippets[:limit]
	}
	return snippets
}

func docTitle(name, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
		if line != "" {
			break
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func splitParagraphs(content string) []string {
	var out []string
	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

func scoreParagraph(para string, terms []string) float64 {
	words := tokenize(para)
	if len(words) == 0 {
		return 0
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	var score float64
	for _, term := range terms {
		if n := counts[term]; n > 0 {
			score += float64(n)
		}
	}
	if score == 0 {
		return 0
	}
	// Normalize so short focused paragraphs beat long rambling ones.
	return score / float64(len(words)) * float64(len(terms))
}

func tokenize(text string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(field) > 2 && !stopwords[field] {
			out = append(out, field)
		}
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true,
	"this": true, "from": true, "are": true, "was": true, "what": true,
	"how": true, "about": true, "you": true, "your": true, "can": true,
}
