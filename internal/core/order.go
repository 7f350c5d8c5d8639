package core

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// OrderID is the caller's order identifier. Raw is the JSON value forwarded
// upstream and Text is the string signed; both describe the same value.
type OrderID struct {
	Raw  json.RawMessage
	Text string
}

// ParseOrderID accepts a non-empty JSON string or a non-zero JSON number.
// Missing, null, empty, zero and boolean values are rejected.
func ParseOrderID(raw json.RawMessage) (OrderID, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return OrderID{}, false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return OrderID{}, false
		}
		encoded, _ := json.Marshal(s)
		return OrderID{Raw: encoded, Text: s}, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return OrderID{}, false
		}
		f, err := n.Float64()
		if err != nil || f == 0 {
			return OrderID{}, false
		}
		text := n.String()
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			// Non-integers and integers beyond int64 travel as float64, so
			// the forwarded number is rewritten to the signed text.
			text = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return OrderID{Raw: json.RawMessage(text), Text: text}, true
	default:
		return OrderID{}, false
	}
}
