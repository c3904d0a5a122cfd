package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"methodology.md": "# Research Methodology\n\nThe dissertation uses a mixed methods design combining surveys and interviews.\n\nSampling follows a stratified approach across three regions.",
		"timeline.md":    "# Timeline\n\nChapter drafts are due in March. The literature review precedes the methodology chapter.",
		"notes.txt":      "not markdown, should be ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestOpenLoadsOnlyMarkdown(t *testing.T) {
	store, err := Open(writeCorpus(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 documents, got %d", store.Len())
	}
}

func TestOpenMissingDirFails(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestSearchRanksRelevantParagraphFirst(t *testing.T) {
	store, err := Open(writeCorpus(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	snippets := store.Search("mixed methods design", 2)
	if len(snippets) == 0 {
		t.Fatal("expected at least one snippet")
	}
	if snippets[0].Source != "Research Methodology" {
		t.Fatalf("wrong source ranked first: %q", snippets[0].Source)
	}
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	store, err := Open(writeCorpus(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := store.Search("", 3); got != nil {
		t.Fatalf("expected nil for empty query, got %+v", got)
	}
}
