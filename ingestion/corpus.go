package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned when the corpus extension has no parser.
var ErrUnsupportedFormat = errors.New("unsupported corpus format")

// Corpus is the immutable source text served by the process.
type Corpus struct {
	Path   string
	Format DocumentFormat
	Text   string
	SHA    string
}

// Len reports the corpus length in characters.
func (c Corpus) Len() int {
	return utf8.RuneCountInString(c.Text)
}

// LoadCorpus reads and parses the file at path once.
func LoadCorpus(path string) (Corpus, error) {
	format := DetectFormat(path)
	parser, ok := parserFor(format)
	if !ok {
		return Corpus{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Corpus{}, fmt.Errorf("read corpus: %w", err)
	}

	text, err := parser.Parse(data)
	if err != nil {
		return Corpus{}, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	if !utf8.ValidString(text) {
		return Corpus{}, fmt.Errorf("corpus %s is not valid UTF-8", path)
	}

	sum := sha256.Sum256([]byte(text))
	return Corpus{
		Path:   path,
		Format: format,
		Text:   text,
		SHA:    hex.EncodeToString(sum[:]),
	}, nil
}
