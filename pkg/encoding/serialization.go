// Package encoding holds the string codecs used to persist structured values in
// string attributes.
package encoding

import (
	"encoding/json"
	"strings"
)

// EncodeString marshals v to a compact JSON string.
func EncodeString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeString unmarshals s into a new T. Blank input yields the zero value.
func DecodeString[T any](s string) (T, error) {
	var out T
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(s), &out)
	return out, err
}
