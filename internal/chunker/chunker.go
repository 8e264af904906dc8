// Package chunker splits normalized page text into bounded,
// paragraph-preserving chunks for embedding and retrieval.
package chunker

import (
	"regexp"
	"strings"
)

// Defaults match the provider-safe sizing used by the embedding layer.
const (
	DefaultMaxChunkSize = 1500
	DefaultMinChunkSize = 50
)

var (
	sectionRe  = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+[\s]*|[^.!?]+$`)
)

// Chunker produces ordered chunks bounded by MaxSize. Chunks shorter than
// MinSize are discarded as noise.
type Chunker struct {
	MaxSize int
	MinSize int
}

// New builds a Chunker, applying defaults for non-positive sizes.
func New(maxSize, minSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if minSize <= 0 {
		minSize = DefaultMinChunkSize
	}
	return &Chunker{MaxSize: maxSize, MinSize: minSize}
}

// Split breaks text on blank-line boundaries into sections, keeps sections
// within MaxSize whole, and splits larger sections on sentence boundaries.
// A single sentence longer than MaxSize is kept intact rather than
// truncated. Output order follows source order; boundaries never cut a
// sentence.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	for _, section := range sectionRe.Split(text, -1) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if len(section) <= c.MaxSize {
			chunks = c.append(chunks, section)
			continue
		}
		chunks = c.splitSection(chunks, section)
	}
	return chunks
}

// splitSection accumulates sentences until adding the next one would exceed
// MaxSize, then flushes.
func (c *Chunker) splitSection(chunks []string, section string) []string {
	var b strings.Builder
	for _, sentence := range sentenceRe.FindAllString(section, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if b.Len() > 0 && b.Len()+1+len(sentence) > c.MaxSize {
			chunks = c.append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	if b.Len() > 0 {
		chunks = c.append(chunks, b.String())
	}
	return chunks
}

func (c *Chunker) append(chunks []string, chunk string) []string {
	if len(chunk) < c.MinSize {
		return chunks
	}
	return append(chunks, chunk)
}
