package ingestion_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabfab/heraklion-chatbot/ingestion"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]ingestion.DocumentFormat{
		"heraklion_history.txt": ingestion.FormatPlainText,
		"HISTORY":               ingestion.FormatPlainText,
		"notes.MD":              ingestion.FormatMarkdown,
		"scan.pdf":              ingestion.FormatPDF,
		"timeline.csv":          ingestion.FormatCSV,
		"image.png":             ingestion.FormatUnknown,
	}
	for path, want := range cases {
		if got := ingestion.DetectFormat(path); got != want {
			t.Fatalf("%s: expected %q, got %q", path, want, got)
		}
	}
}

func TestLoadCorpusPlainText(t *testing.T) {
	path := writeFile(t, "heraklion_history.txt", "Heraklion is a city in Crete.\r\nIt was founded in antiquity.\r\n")

	corpus, err := ingestion.LoadCorpus(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if corpus.Text != "Heraklion is a city in Crete.\nIt was founded in antiquity.\n" {
		t.Fatalf("unexpected corpus text: %q", corpus.Text)
	}
	if corpus.Format != ingestion.FormatPlainText {
		t.Fatalf("unexpected format: %q", corpus.Format)
	}
	if len(corpus.SHA) != 64 {
		t.Fatalf("expected hex sha256, got %q", corpus.SHA)
	}
}

func TestLoadCorpusCountsCharacters(t *testing.T) {
	path := writeFile(t, "greek.txt", "Ηράκλειο")

	corpus, err := ingestion.LoadCorpus(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if corpus.Len() != 8 {
		t.Fatalf("expected 8 characters, got %d", corpus.Len())
	}
}

func TestLoadCorpusCSV(t *testing.T) {
	path := writeFile(t, "timeline.csv", "year,event\n961,Byzantine reconquest\n1669,Ottoman conquest\n")

	corpus, err := ingestion.LoadCorpus(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Row 1\nyear: 961\nevent: Byzantine reconquest\n\nRow 2\nyear: 1669\nevent: Ottoman conquest"
	if corpus.Text != want {
		t.Fatalf("unexpected csv rendering:\n%s", corpus.Text)
	}
}

func TestLoadCorpusEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.txt", "")

	corpus, err := ingestion.LoadCorpus(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if corpus.Text != "" {
		t.Fatalf("expected empty text, got %q", corpus.Text)
	}
}

func TestLoadCorpusMissingFile(t *testing.T) {
	_, err := ingestion.LoadCorpus(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing corpus file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadCorpusUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "photo.png", "not text")

	_, err := ingestion.LoadCorpus(path)
	if !errors.Is(err, ingestion.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadCorpusRejectsInvalidPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", strings.Repeat("not a pdf ", 10))

	if _, err := ingestion.LoadCorpus(path); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}
