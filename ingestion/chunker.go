package ingestion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrInvalidChunking is returned for a size/overlap pair that cannot make progress.
var ErrInvalidChunking = errors.New("invalid chunking parameters")

// Chunk is a contiguous slice of the corpus. Offsets count runes, End is exclusive.
type Chunk struct {
	ID      string
	Index   int
	Start   int
	End     int
	Overlap int
	Text    string
}

// Len reports the chunk length in characters.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Splitter cuts text into windows of at most size characters, each starting
// overlap characters before the end of the previous one.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// boundary reports whether a chunk may end right before position pos.
type boundary func(r []rune, pos int) bool

// Ordered from the largest semantic unit to the smallest.
var boundaries = []boundary{
	paragraphBoundary,
	lineBoundary,
	sentenceBoundary,
	wordBoundary,
}

func paragraphBoundary(r []rune, pos int) bool {
	return pos >= 2 && r[pos-1] == '\n' && r[pos-2] == '\n'
}

func lineBoundary(r []rune, pos int) bool {
	return pos >= 1 && r[pos-1] == '\n'
}

func sentenceBoundary(r []rune, pos int) bool {
	return pos >= 2 && unicode.IsSpace(r[pos-1]) && isSentenceEnd(r[pos-2])
}

func wordBoundary(r []rune, pos int) bool {
	return pos >= 1 && unicode.IsSpace(r[pos-1])
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\u037e', '\u2026':
		return true
	}
	return false
}

// Split returns the chunks of text in order. Empty text yields no chunks.
// A run without any boundary longer than the window is cut mid-token.
func (s *Splitter) Split(text string) []Chunk {
	r := []rune(text)
	n := len(r)
	if n == 0 {
		return nil
	}

	var chunks []Chunk
	start, prevEnd := 0, 0
	for {
		if n-start <= s.size {
			chunks = append(chunks, s.chunk(r, len(chunks), start, n, prevEnd))
			return chunks
		}

		end := s.cut(r, start)
		chunks = append(chunks, s.chunk(r, len(chunks), start, end, prevEnd))
		prevEnd = end
		start = s.nextStart(r, start, end)
	}
}

// SplitCorpus splits the corpus text and assigns IDs derived from the corpus
// hash and chunk offsets, so the same file always yields the same IDs.
func (s *Splitter) SplitCorpus(corpus Corpus) []Chunk {
	chunks := s.Split(corpus.Text)
	for i := range chunks {
		name := corpus.SHA + ":" + strconv.Itoa(chunks[i].Start) + ":" + strconv.Itoa(chunks[i].End)
		chunks[i].ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
	}
	return chunks
}

func (s *Splitter) chunk(r []rune, idx, start, end, prevEnd int) Chunk {
	overlap := 0
	if idx > 0 {
		overlap = prevEnd - start
	}
	return Chunk{
		Index:   idx,
		Start:   start,
		End:     end,
		Overlap: overlap,
		Text:    string(r[start:end]),
	}
}

// cut picks the end of the window starting at start. The end must leave room
// for the next chunk to begin past start once the overlap is subtracted.
func (s *Splitter) cut(r []rune, start int) int {
	lo, hi := start+s.overlap+1, start+s.size
	for _, isBoundary := range boundaries {
		for pos := hi; pos >= lo; pos-- {
			if isBoundary(r, pos) {
				return pos
			}
		}
	}
	return hi
}

// nextStart steps back overlap runes from end and then forward to the first
// word start, if any lies before end.
func (s *Splitter) nextStart(r []rune, start, end int) int {
	target := end - s.overlap
	if target <= start {
		target = start + 1
	}
	for pos := target; pos < end; pos++ {
		if wordBoundary(r, pos) && !unicode.IsSpace(r[pos]) {
			return pos
		}
	}
	return target
}

// Reassemble joins chunks back into the text they were split from by dropping
// each chunk's overlapping prefix.
func Reassemble(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		r := []rune(c.Text)
		if c.Overlap > len(r) {
			continue
		}
		sb.WriteString(string(r[c.Overlap:]))
	}
	return sb.String()
}
