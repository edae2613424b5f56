// Package frame models the dynamic key/value trees the NGPAS gateway returns.
//
// Status and result frames are heterogeneous, sparse, and evolve with PED
// firmware, so they are kept as a tagged tree (object / array / string /
// number / bool / null) rather than a closed schema. Typed accessors return
// an optional value; field presence and substring checks define the contract
// between the engine and the gateway.
package frame

import "strings"

// Well-known frame keys. The gateway spells the correlation id two ways,
// so reads must accept both (see Frame.SourceID).
const (
	KeyError      = "error"
	KeyParseError = "parseError"
	KeyRaw        = "raw"

	KeyComplete    = "complete"
	KeyInProgress  = "inProgress"
	KeyDisplayText = "displayText"

	KeyParameter      = "parameter"
	KeyParameterType  = "parameterType"
	KeyParameterValue = "parameterValue"

	KeyAmount   = "amount"
	KeyCashback = "cashback"
	KeyCurrency = "currency"

	KeySuccess      = "success"
	KeyDeclined     = "declined"
	KeySourceID     = "sourceId"
	KeySourceIDWire = "sourceid"
)

// Frame is one decoded gateway reply: a JSON object held as a dynamic tree.
// A nil or empty Frame is a valid "no information" reply.
type Frame map[string]any

// IsEmpty reports whether the frame carries no fields at all.
func (f Frame) IsEmpty() bool {
	return len(f) == 0
}

// Has reports whether key is present, regardless of its value.
func (f Frame) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Str returns the string value of key and whether it is present as a string.
func (f Frame) Str(key string) (string, bool) {
	v, ok := f[key].(string)
	return v, ok
}

// StrOr returns the string value of key, or def when absent or not a string.
func (f Frame) StrOr(key, def string) string {
	if v, ok := f.Str(key); ok {
		return v
	}

	return def
}

// Bool returns the boolean value of key and whether it is present as a bool.
func (f Frame) Bool(key string) (bool, bool) {
	v, ok := f[key].(bool)
	return v, ok
}

// BoolOr returns the boolean value of key, or def when absent or not a bool.
func (f Frame) BoolOr(key string, def bool) bool {
	if v, ok := f.Bool(key); ok {
		return v
	}

	return def
}

// Float returns the numeric value of key and whether it is present as a number.
func (f Frame) Float(key string) (float64, bool) {
	v, ok := f[key].(float64)
	return v, ok
}

// FirstStr returns the first present string value among keys.
func (f Frame) FirstStr(keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := f.Str(key); ok {
			return v, true
		}
	}

	return "", false
}

// ErrorText returns the error field, or "" when the frame is not an error reply.
func (f Frame) ErrorText() string {
	return f.StrOr(KeyError, "")
}

// ErrorContains reports whether the frame is an error reply whose text
// contains substr. Error classes on the wire are identified by substring,
// not by code fields.
func (f Frame) ErrorContains(substr string) bool {
	errText, ok := f.Str(KeyError)
	return ok && strings.Contains(errText, substr)
}

// SourceID returns the correlation id, accepting both spellings the gateway
// uses ("sourceId" on some results, "sourceid" on others).
func (f Frame) SourceID() string {
	v, _ := f.FirstStr(KeySourceID, KeySourceIDWire)
	return v
}

// Approved reports whether a result frame represents an approved transaction:
// success is true and declined is not true.
func (f Frame) Approved() bool {
	return f.BoolOr(KeySuccess, false) && !f.BoolOr(KeyDeclined, false)
}

// PromptPending reports whether the PED is requesting operator input:
// both parameter and parameterType are present and non-empty.
func (f Frame) PromptPending() bool {
	param, _ := f.Str(KeyParameter)
	ptype, _ := f.Str(KeyParameterType)

	return param != "" && ptype != ""
}

// ReceiptLines flattens a receipt array under key (custReceipt or
// merchReceipt), where each element is an object carrying a "text" field,
// into the plain lines the host prints. Elements without a text field are
// skipped.
func (f Frame) ReceiptLines(key string) []string {
	arr, ok := f[key].([]any)
	if !ok {
		return nil
	}

	lines := make([]string, 0, len(arr))
	for _, elem := range arr {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := obj["text"].(string); ok {
			lines = append(lines, text)
		}
	}

	return lines
}
