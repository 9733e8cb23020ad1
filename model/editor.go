package model

import (
	"fmt"
	"strconv"
	"strings"
)

const fieldIDPrefix = "field_"

// DefaultOptions seeds every new choice field.
var DefaultOptions = []string{"Option 1", "Option 2"}

// NewField builds a fresh field of the given type. The label is the
// capitalized type name followed by "Field", e.g. "Multiple-choice Field".
func NewField(id string, t FieldType) FieldDefinition {
	f := FieldDefinition{
		ID:       id,
		Type:     t,
		Label:    defaultLabel(t),
		Required: false,
	}
	if t.NeedsOptions() {
		f.Options = append([]string(nil), DefaultOptions...)
	}
	return f
}

func defaultLabel(t FieldType) string {
	s := string(t)
	if s == "" {
		return "Field"
	}
	return strings.ToUpper(s[:1]) + s[1:] + " Field"
}

// AddField appends a new field of type t with an id that no field of the
// form has used, and returns it.
func (form *FormDefinition) AddField(t FieldType) FieldDefinition {
	f := NewField(form.nextFieldID(), t)
	form.Fields = append(form.Fields, f)
	return f
}

func (form *FormDefinition) nextFieldID() string {
	max := 0
	for _, f := range form.Fields {
		n, err := strconv.Atoi(strings.TrimPrefix(f.ID, fieldIDPrefix))
		if err == nil && strings.HasPrefix(f.ID, fieldIDPrefix) && n > max {
			max = n
		}
	}
	return fieldIDPrefix + strconv.Itoa(max+1)
}

func (form *FormDefinition) RemoveField(id string) bool {
	for i, f := range form.Fields {
		if f.ID == id {
			form.Fields = append(form.Fields[:i], form.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateField replaces the field sharing f's id. Attributes that do not apply
// to the field's type are dropped.
func (form *FormDefinition) UpdateField(f FieldDefinition) bool {
	for i := range form.Fields {
		if form.Fields[i].ID == f.ID {
			form.Fields[i] = normalize(f)
			return true
		}
	}
	return false
}

func normalize(f FieldDefinition) FieldDefinition {
	if !f.Type.NeedsOptions() {
		f.Options = nil
	}
	if f.Type != Text {
		f.Validation = nil
	}
	return f
}

// MoveField moves the field at index from to index to, keeping the relative
// order of every other field.
func (form *FormDefinition) MoveField(from, to int) error {
	n := len(form.Fields)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d: index out of range [0,%d)", from, to, n)
	}
	if from == to {
		return nil
	}
	moved := form.Fields[from]
	if from < to {
		copy(form.Fields[from:to], form.Fields[from+1:to+1])
	} else {
		copy(form.Fields[to+1:from+1], form.Fields[to:from])
	}
	form.Fields[to] = moved
	return nil
}
