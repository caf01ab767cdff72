package cacheclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const requiredVideoProperties = 5

// Validate checks a typed submission before it is sent. A zero-value string
// counts as a missing property; properties are checked in the order
// identifier, title, author, artwork. Duration is sent as given.
func (in CreateVideoInput) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"identifier", in.Identifier},
		{"title", in.Title},
		{"author", in.Author},
		{"artwork", in.Artwork},
	}
	for _, field := range required {
		if field.value == "" {
			return missingField(field.name)
		}
	}
	return nil
}

// VideoObject is a submission decoded from untyped JSON. The client posts the
// original object unchanged, so properties beyond the five known ones reach
// the service too.
type VideoObject struct {
	Input CreateVideoInput
	raw   json.RawMessage
}

// Raw returns the object exactly as it will be posted.
func (o VideoObject) Raw() json.RawMessage {
	return o.raw
}

// ParseCreateVideoInput decodes an untyped JSON submission into its typed
// form. See ParseVideoObject for the checks applied.
func ParseCreateVideoInput(data []byte) (CreateVideoInput, error) {
	obj, err := ParseVideoObject(data)
	if err != nil {
		return CreateVideoInput{}, err
	}
	return obj.Input, nil
}

// ParseVideoObject decodes an untyped JSON submission. It fails with
// ErrMissingObject when the value is absent or has fewer than five properties,
// then with ErrTypeMismatch for the first property whose JSON type is wrong.
// Values are not inspected further: empty strings and negative durations pass.
func ParseVideoObject(data []byte) (VideoObject, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return VideoObject{}, ErrMissingObject
	}

	var props map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &props); err != nil {
		return VideoObject{}, fmt.Errorf("%w: %v", ErrMissingObject, err)
	}
	if len(props) < requiredVideoProperties {
		return VideoObject{}, ErrMissingObject
	}

	var in CreateVideoInput
	strs := []struct {
		name string
		dst  *string
	}{
		{"identifier", &in.Identifier},
		{"title", &in.Title},
		{"author", &in.Author},
		{"artwork", &in.Artwork},
	}
	for _, field := range strs {
		raw, ok := props[field.name]
		if !ok || jsonKind(raw) != '"' {
			return VideoObject{}, mismatchedField(field.name, "string")
		}
		if err := json.Unmarshal(raw, field.dst); err != nil {
			return VideoObject{}, mismatchedField(field.name, "string")
		}
	}

	raw, ok := props["duration"]
	if !ok || jsonKind(raw) != '0' {
		return VideoObject{}, mismatchedField("duration", "number")
	}
	if err := json.Unmarshal(raw, &in.Duration); err != nil {
		return VideoObject{}, mismatchedField("duration", "number")
	}

	return VideoObject{Input: in, raw: append(json.RawMessage(nil), trimmed...)}, nil
}

// jsonKind classifies a raw JSON value by its first byte; numbers report '0'.
func jsonKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		return '0'
	default:
		return c
	}
}
