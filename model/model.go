package model

import (
	"fmt"
	"time"
)

type FieldType string

const (
	Text           FieldType = "text"
	MultipleChoice FieldType = "multiple-choice"
	Checkbox       FieldType = "checkbox"
	Rating         FieldType = "rating"
)

// FieldTypes lists every supported field type in palette order.
var FieldTypes = []FieldType{Text, MultipleChoice, Checkbox, Rating}

func ParseFieldType(s string) (FieldType, error) {
	for _, t := range FieldTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown field type %q", s)
}

// NeedsOptions reports whether fields of this type carry an options list.
func (t FieldType) NeedsOptions() bool {
	return t == MultipleChoice || t == Checkbox
}

func (t FieldType) Valid() bool {
	_, err := ParseFieldType(string(t))
	return err == nil
}

// Validation holds the optional text constraints. Zero-valued pointers mean "unset".
type Validation struct {
	MinLength *int   `json:"minLength,omitempty" bson:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty" bson:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty" bson:"pattern,omitempty" yaml:"pattern,omitempty"`
}

type FieldDefinition struct {
	ID         string      `json:"id" bson:"id" yaml:"id"`
	Type       FieldType   `json:"type" bson:"type" yaml:"type"`
	Label      string      `json:"label" bson:"label" yaml:"label"`
	Required   bool        `json:"required" bson:"required" yaml:"required"`
	Options    []string    `json:"options,omitempty" bson:"options,omitempty" yaml:"options,omitempty"`
	Validation *Validation `json:"validation,omitempty" bson:"validation,omitempty" yaml:"validation,omitempty"`
}

type FormDefinition struct {
	Slug        string            `json:"slug" bson:"slug" yaml:"slug"`
	Title       string            `json:"title" bson:"title" yaml:"title"`
	Description string            `json:"description" bson:"description" yaml:"description"`
	Fields      []FieldDefinition `json:"fields" bson:"fields" yaml:"fields"`
	CreatedAt   time.Time         `json:"createdAt,omitempty" bson:"createdAt" yaml:"-"`
	UpdatedAt   time.Time         `json:"updatedAt,omitempty" bson:"updatedAt" yaml:"-"`
}

type ResponseRecord struct {
	ID        string           `json:"id"`
	FormSlug  string           `json:"formSlug"`
	Timestamp time.Time        `json:"timestamp"`
	IP        string           `json:"ip,omitempty"`
	Data      map[string]Value `json:"data"`
}

// Field returns the field with the given id.
func (form *FormDefinition) Field(id string) (FieldDefinition, bool) {
	for _, f := range form.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

func (f FieldDefinition) Clone() FieldDefinition {
	if f.Options != nil {
		f.Options = append([]string(nil), f.Options...)
	}
	if f.Validation != nil {
		v := *f.Validation
		if v.MinLength != nil {
			n := *v.MinLength
			v.MinLength = &n
		}
		if v.MaxLength != nil {
			n := *v.MaxLength
			v.MaxLength = &n
		}
		f.Validation = &v
	}
	return f
}

// Clone returns a deep copy, so the caller may mutate it freely.
func (form FormDefinition) Clone() FormDefinition {
	if form.Fields != nil {
		fields := make([]FieldDefinition, len(form.Fields))
		for i, f := range form.Fields {
			fields[i] = f.Clone()
		}
		form.Fields = fields
	}
	return form
}

func (r ResponseRecord) Clone() ResponseRecord {
	if r.Data != nil {
		data := make(map[string]Value, len(r.Data))
		for k, v := range r.Data {
			if cb, ok := v.(CheckboxValue); ok {
				v = append(CheckboxValue(nil), cb...)
			}
			data[k] = v
		}
		r.Data = data
	}
	return r
}
