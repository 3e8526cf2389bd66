// Package extract pulls a JSON object out of free-form model replies.
//
// Models asked for "JSON only" still wrap their answer in prose or markdown
// fences. Extract tries, in order: the whole reply, a ```json fenced block,
// and finally the first brace-delimited span. Only the first candidate found
// is decoded; later spans are never tried.
package extract

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

const (
	MsgCouldNotExtract = "Could not extract JSON"
	MsgDecodeFailed    = "Error decoding JSON"
)

// Result is a decoded JSON object. Numbers are kept as json.Number so they
// are re-encoded exactly as the model wrote them.
type Result map[string]any

// Failure is returned when no JSON object could be recovered from a reply.
type Failure struct {
	Message string `json:"error"`
}

func (f *Failure) Error() string { return f.Message }

// IsFailure reports whether err is an extraction failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

var lazyBraces = regexp.MustCompile(`(?s)\{.*?\}`)

// Extract returns the JSON object embedded in text. The returned error is
// always a *Failure.
func Extract(text string) (Result, error) {
	if obj, ok := decodeObject(strings.TrimSpace(text)); ok {
		return obj, nil
	}

	candidate, found := fencedCandidate(text)
	if !found {
		candidate, found = braceCandidate(text)
	}
	if !found {
		return nil, &Failure{Message: MsgCouldNotExtract}
	}

	obj, ok := decodeObject(candidate)
	if !ok {
		return nil, &Failure{Message: MsgDecodeFailed}
	}
	return obj, nil
}

func fencedCandidate(text string) (string, bool) {
	m := fencedJSON.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// braceCandidate returns the first balanced {...} span. String literals are
// skipped so braces inside them do not count. If the first opening brace is
// never closed, the shortest {...} span is used instead.
func braceCandidate(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	if end, ok := matchBrace(text, start); ok {
		return text[start : end+1], true
	}
	if m := lazyBraces.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func decodeObject(s string) (Result, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return Result(obj), true
}
