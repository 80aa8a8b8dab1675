// Package ingestion loads the source corpus and splits it into overlapping
// chunks ready for embedding.
package ingestion

import (
	"path/filepath"
	"strings"
)

// DocumentFormat enumerates supported corpus payload formats.
type DocumentFormat string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown DocumentFormat = ""
	// FormatPlainText represents UTF-8 text read verbatim.
	FormatPlainText DocumentFormat = "text"
	// FormatMarkdown represents Markdown documents, treated as plain text.
	FormatMarkdown DocumentFormat = "markdown"
	// FormatPDF represents PDF documents.
	FormatPDF DocumentFormat = "pdf"
	// FormatCSV represents comma separated values documents.
	FormatCSV DocumentFormat = "csv"
)

// DetectFormat infers a document format from the provided path's extension.
// Files without an extension are assumed to be plain text.
func DetectFormat(path string) DocumentFormat {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "", ".txt", ".text":
		return FormatPlainText
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}
