package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// TextProcessor provides utilities for processing text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// DecodePermissive turns arbitrary bytes into valid UTF-8. Input that is
// already UTF-8 is kept; anything else is read as Windows-1252, which maps
// every byte. NUL bytes are dropped.
func (tp *TextProcessor) DecodePermissive(b []byte) string {
	text := string(b)
	if !utf8.ValidString(text) {
		decoded, err := charmap.Windows1252.NewDecoder().String(text)
		if err != nil {
			tp.logger.Debug("Windows-1252 decoding failed, sanitizing instead", zap.Error(err))
			decoded = tp.SanitizeUTF8(text)
		} else {
			tp.logger.Debug("Decoded non UTF-8 input as Windows-1252",
				zap.Int("size", len(b)))
		}
		text = decoded
	}
	return StripNUL(text)
}

// StripNUL removes NUL bytes
func StripNUL(text string) string {
	if !strings.ContainsRune(text, 0) {
		return text
	}
	return strings.ReplaceAll(text, "\x00", "")
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Drop a partial rune at the cut
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "..."
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(string(result))))

	return string(result)
}

// SingleLine collapses whitespace runs, including line breaks, to one space
// so text can be placed in a header field
func SingleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ProcessText sanitizes text and truncates it for a single-line field
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.TruncateText(SingleLine(tp.SanitizeUTF8(text)), maxSize)
}
