// Package validation checks respondents' answers against form definitions.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/mbolis/quick-form/model"
)

type Code string

const (
	MissingRequiredValue Code = "missing_required_value"
	LengthOutOfRange     Code = "length_out_of_range"
	PatternMismatch      Code = "pattern_mismatch"
	InvalidOption        Code = "invalid_option"
	InvalidValue         Code = "invalid_value"
)

// Error is a single field's validation failure.
type Error struct {
	FieldID string `json:"fieldId"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.FieldID, e.Message)
}

// Errors maps field ids to their failure.
type Errors map[string]*Error

func (errs Errors) Valid() bool {
	return len(errs) == 0
}

func fail(f model.FieldDefinition, code Code, format string, args ...any) *Error {
	return &Error{FieldID: f.ID, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validate checks one answer. A nil value means the field was left out.
// The required check always runs first; the first failing rule wins.
func Validate(f model.FieldDefinition, v model.Value) *Error {
	if model.IsAbsent(v) {
		if f.Required {
			return fail(f, MissingRequiredValue, "%s is required", f.Label)
		}
		return nil
	}

	if v.FieldType() != f.Type {
		return fail(f, InvalidValue, "%s expects a %s answer", f.Label, f.Type)
	}

	switch v := v.(type) {
	case model.TextValue:
		return validateText(f, string(v))
	case model.ChoiceValue:
		if !contains(f.Options, string(v)) {
			return fail(f, InvalidOption, "%q is not an option of %s", string(v), f.Label)
		}
	case model.CheckboxValue:
		seen := make(map[string]bool, len(v))
		for _, s := range v {
			if !contains(f.Options, s) {
				return fail(f, InvalidOption, "%q is not an option of %s", s, f.Label)
			}
			if seen[s] {
				return fail(f, InvalidOption, "%q selected more than once", s)
			}
			seen[s] = true
		}
	case model.RatingValue:
		if v < model.MinRating || v > model.MaxRating {
			return fail(f, InvalidValue, "Rating must be between %d and %d", model.MinRating, model.MaxRating)
		}
	}
	return nil
}

func validateText(f model.FieldDefinition, s string) *Error {
	rules := f.Validation
	if rules == nil {
		return nil
	}

	n := utf8.RuneCountInString(s)
	if rules.MinLength != nil && n < *rules.MinLength {
		return fail(f, LengthOutOfRange, "Minimum length is %d characters", *rules.MinLength)
	}
	if rules.MaxLength != nil && n > *rules.MaxLength {
		return fail(f, LengthOutOfRange, "Maximum length is %d characters", *rules.MaxLength)
	}
	if rules.Pattern != "" {
		re, err := regexp.Compile(rules.Pattern)
		if err != nil || !re.MatchString(s) {
			return fail(f, PatternMismatch, "Invalid format")
		}
	}
	return nil
}

func contains(options []string, s string) bool {
	for _, opt := range options {
		if opt == s {
			return true
		}
	}
	return false
}

// ValidateForm checks every field of the form against data. The submission
// is acceptable iff the result is empty.
func ValidateForm(form model.FormDefinition, data map[string]model.Value) Errors {
	errs := Errors{}
	for _, f := range form.Fields {
		if err := Validate(f, data[f.ID]); err != nil {
			errs[f.ID] = err
		}
	}
	return errs
}

// ValidateSubmission parses a raw submission and validates it. Answers that
// cannot be parsed are reported as invalid values.
func ValidateSubmission(form model.FormDefinition, raw map[string]json.RawMessage) (map[string]model.Value, Errors) {
	data, parseErrs := model.ParseSubmission(form, raw)
	errs := ValidateForm(form, data)
	for _, f := range form.Fields {
		if err, ok := parseErrs[f.ID]; ok {
			errs[f.ID] = fail(f, InvalidValue, "%s: %s", f.Label, err)
		}
	}
	return data, errs
}
