package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned by DecodeDocument when the payload is valid JSON
// but not an object.
var ErrNotObject = errors.New("schema: document is not a JSON object")

// DecodeDocument reads exactly one JSON object from r. Numbers are kept as
// json.Number so integer fields can tell 1 from 1.0.
func DecodeDocument(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode document: trailing data after object")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Document(obj), nil
}
