package frame

import (
	"encoding/json"
	"strings"
)

// Reply prefixes the gateway interleaves before the JSON body.
const (
	errorPrefix       = "error"
	transactionPrefix = "transaction"
)

// Parse classifies a raw gateway reply and normalizes it into a Frame.
//
// Rules, applied in order:
//
//  1. Empty or whitespace input yields an empty frame.
//  2. A reply led by the "error" token is unwrapped: the JSON object after the
//     first '{' is returned when it parses; with no object the whole raw text
//     is kept under the error key.
//  3. A reply led by the "transaction" token is stripped to its first '{'.
//  4. The remaining text is parsed as a JSON object. Anything unparseable is
//     returned as {parseError, raw} so the poll loop can treat it as a
//     non-terminal observation.
func Parse(raw string) Frame {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Frame{}
	}

	switch leadingToken(trimmed) {
	case errorPrefix:
		idx := strings.IndexByte(trimmed, '{')
		if idx < 0 {
			return Frame{KeyError: raw}
		}

		obj, err := parseObject(trimmed[idx:])
		if err != nil {
			return Frame{KeyError: raw, KeyParseError: err.Error()}
		}

		return obj

	case transactionPrefix:
		if idx := strings.IndexByte(trimmed, '{'); idx >= 0 {
			trimmed = trimmed[idx:]
		}
	}

	obj, err := parseObject(trimmed)
	if err != nil {
		return Frame{KeyParseError: err.Error(), KeyRaw: raw}
	}

	return obj
}

// leadingToken returns the first token of s, delimited by whitespace or the
// opening brace of an embedded object.
func leadingToken(s string) string {
	end := len(s)
	if idx := strings.IndexAny(s, " \t{"); idx >= 0 {
		end = idx
	}

	return s[:end]
}

func parseObject(s string) (Frame, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}

	return Frame(obj), nil
}
