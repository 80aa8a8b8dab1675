package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

type documentParser interface {
	Parse(data []byte) (string, error)
}

func parserFor(format DocumentFormat) (documentParser, bool) {
	switch format {
	case FormatPlainText, FormatMarkdown:
		return plainTextParser{}, true
	case FormatPDF:
		return pdfParser{}, true
	case FormatCSV:
		return csvParser{}, true
	default:
		return nil, false
	}
}

type plainTextParser struct{}

func (plainTextParser) Parse(data []byte) (string, error) {
	return normalizeLineEndings(string(data)), nil
}

type pdfParser struct{}

func (pdfParser) Parse(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizePlainText(buf.String()), nil
}

type csvParser struct{}

// Parse renders each row as "Header: value" lines, one paragraph per row.
func (csvParser) Parse(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return "", nil
	}

	headers := records[0]
	rows := make([]string, 0, len(records)-1)
	for idx, row := range records[1:] {
		rows = append(rows, formatCSVRow(headers, row, idx))
	}

	return strings.Join(rows, "\n\n"), nil
}

func normalizeLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

func normalizePlainText(content string) string {
	lines := strings.Split(normalizeLineEndings(content), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func formatCSVRow(headers, row []string, idx int) string {
	builder := &strings.Builder{}
	builder.WriteString(fmt.Sprintf("Row %d", idx+1))

	for i, value := range row {
		header := ""
		if i < len(headers) {
			header = strings.TrimSpace(headers[i])
		}
		if header == "" {
			header = fmt.Sprintf("Column %d", i+1)
		}
		builder.WriteString("\n")
		builder.WriteString(header)
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(value))
	}

	return builder.String()
}
