package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	MinRating = 1
	MaxRating = 5
)

var (
	ErrValueShape  = errors.New("value does not match field type")
	ErrRatingRange = fmt.Errorf("rating must be an integer between %d and %d", MinRating, MaxRating)
)

// Value is one answer. There is one concrete type per FieldType.
type Value interface {
	FieldType() FieldType
	// IsEmpty reports whether the answer counts as "not given".
	IsEmpty() bool
}

type (
	TextValue     string
	ChoiceValue   string
	CheckboxValue []string
	RatingValue   int
)

func (TextValue) FieldType() FieldType     { return Text }
func (ChoiceValue) FieldType() FieldType   { return MultipleChoice }
func (CheckboxValue) FieldType() FieldType { return Checkbox }
func (RatingValue) FieldType() FieldType   { return Rating }

func (v TextValue) IsEmpty() bool     { return v == "" }
func (v ChoiceValue) IsEmpty() bool   { return v == "" }
func (v CheckboxValue) IsEmpty() bool { return len(v) == 0 }
func (RatingValue) IsEmpty() bool     { return false }

// IsAbsent reports whether v is missing or empty.
func IsAbsent(v Value) bool {
	return v == nil || v.IsEmpty()
}

// ParseValue decodes the raw JSON answer to field f. A missing or null answer
// yields a nil Value and no error.
func ParseValue(f FieldDefinition, raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch f.Type {
	case Text, MultipleChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s expects a string", ErrValueShape, f.Type)
		}
		if f.Type == Text {
			return TextValue(s), nil
		}
		return ChoiceValue(s), nil

	case Checkbox:
		var ss []string
		if err := json.Unmarshal(raw, &ss); err != nil {
			return nil, fmt.Errorf("%w: checkbox expects a list of strings", ErrValueShape)
		}
		if ss == nil {
			ss = []string{}
		}
		return CheckboxValue(ss), nil

	case Rating:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: rating expects a number", ErrValueShape)
		}
		if n != math.Trunc(n) || n < MinRating || n > MaxRating {
			return nil, ErrRatingRange
		}
		return RatingValue(int(n)), nil
	}

	return nil, fmt.Errorf("%w: unknown field type %q", ErrValueShape, f.Type)
}

// ParseSubmission decodes a raw submission against the form. Answers to
// unknown fields are dropped; answers that fail to parse are reported per
// field id and left out of the result.
func ParseSubmission(form FormDefinition, raw map[string]json.RawMessage) (map[string]Value, map[string]error) {
	data := make(map[string]Value, len(form.Fields))
	var errs map[string]error
	for _, f := range form.Fields {
		v, err := ParseValue(f, raw[f.ID])
		if err != nil {
			if errs == nil {
				errs = map[string]error{}
			}
			errs[f.ID] = err
			continue
		}
		if v != nil {
			data[f.ID] = v
		}
	}
	return data, errs
}

// DecodeData is the lenient counterpart of ParseSubmission used for stored
// answers: anything that no longer fits the current form is skipped.
func DecodeData(form FormDefinition, raw map[string]json.RawMessage) map[string]Value {
	data, _ := ParseSubmission(form, raw)
	return data
}

// EncodeData turns answers into raw JSON, one entry per field id.
func EncodeData(data map[string]Value) (map[string]json.RawMessage, error) {
	raw := make(map[string]json.RawMessage, len(data))
	for id, v := range data {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", id, err)
		}
		raw[id] = b
	}
	return raw, nil
}

// ToPlain converts a value to its natural Go representation (string,
// []string or int), as stored by document databases.
func ToPlain(v Value) any {
	switch v := v.(type) {
	case TextValue:
		return string(v)
	case ChoiceValue:
		return string(v)
	case CheckboxValue:
		return []string(v)
	case RatingValue:
		return int(v)
	}
	return nil
}

// Conform keeps only the answers that still fit a field of form with the
// same type.
func (form FormDefinition) Conform(data map[string]Value) map[string]Value {
	out := make(map[string]Value, len(data))
	for _, f := range form.Fields {
		if v, ok := data[f.ID]; ok && v != nil && v.FieldType() == f.Type {
			out[f.ID] = v
		}
	}
	return out
}
