package output

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TextOptions controls text cleanup
type TextOptions struct {
	CapitalizeSentences bool
	AddPunctuation      bool
	RemoveExtraSpaces   bool
}

// TextFormatter cleans up plain text results
type TextFormatter struct {
	options TextOptions
	buffer  []string
}

// NewTextFormatter creates a formatter with every cleanup enabled
func NewTextFormatter() *TextFormatter {
	return NewTextFormatterWithOptions(TextOptions{
		CapitalizeSentences: true,
		AddPunctuation:      true,
		RemoveExtraSpaces:   true,
	})
}

// NewTextFormatterWithOptions creates a formatter with the given cleanup options
func NewTextFormatterWithOptions(options TextOptions) *TextFormatter {
	return &TextFormatter{options: options}
}

// Format implements Formatter
func (f *TextFormatter) Format(content any) (string, error) {
	return f.format(fmt.Sprint(content)), nil
}

func (f *TextFormatter) format(text string) string {
	if f.options.RemoveExtraSpaces {
		text = strings.Join(strings.Fields(text), " ")
	}
	if text == "" {
		return ""
	}

	if f.options.CapitalizeSentences {
		sentences := strings.Split(text, ". ")
		for i, s := range sentences {
			sentences[i] = capitalize(s)
		}
		text = strings.Join(sentences, ". ")
	}

	if f.options.AddPunctuation && !endsSentence(text) {
		text += "."
	}

	return text
}

// Append implements Formatter
func (f *TextFormatter) Append(content any) {
	f.buffer = append(f.buffer, fmt.Sprint(content))
}

// Formatted implements Formatter
func (f *TextFormatter) Formatted() (string, error) {
	parts := make([]string, 0, len(f.buffer))
	for _, text := range f.buffer {
		if formatted := f.format(text); formatted != "" {
			parts = append(parts, formatted)
		}
	}
	return strings.Join(parts, " "), nil
}

// Clear implements Formatter
func (f *TextFormatter) Clear() {
	f.buffer = nil
}

// capitalize upper-cases the first letter and leaves the rest as is
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func endsSentence(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
