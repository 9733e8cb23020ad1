package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reUnsafeSlug = regexp.MustCompile(`[\s/?#%]`)
)

// Slugify derives the lookup key of a form from its title.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	return reWhitespace.ReplaceAllLiteralString(slug, "-")
}

// Check verifies that a form is complete enough to be published. All the
// problems found are reported together.
func (form FormDefinition) Check() error {
	var result *multierror.Error

	if strings.TrimSpace(form.Title) == "" {
		result = multierror.Append(result, fmt.Errorf("title is empty"))
	}
	switch {
	case form.Slug == "":
		result = multierror.Append(result, fmt.Errorf("slug is empty"))
	case reUnsafeSlug.MatchString(form.Slug):
		result = multierror.Append(result, fmt.Errorf("slug %q is not URL safe", form.Slug))
	}

	seen := make(map[string]bool, len(form.Fields))
	for i, f := range form.Fields {
		if f.ID == "" {
			result = multierror.Append(result, fmt.Errorf("field #%d: id is empty", i+1))
		} else if seen[f.ID] {
			result = multierror.Append(result, fmt.Errorf("field %s: duplicate id", f.ID))
		}
		seen[f.ID] = true

		if err := f.Check(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// Check verifies the type-dependent attributes of a single field.
func (f FieldDefinition) Check() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("field %s: "+format, append([]any{f.ID}, args...)...))
	}

	if !f.Type.Valid() {
		fail("unknown type %q", f.Type)
	}
	if f.Type.NeedsOptions() {
		if len(f.Options) == 0 {
			fail("%s field needs at least one option", f.Type)
		}
		for i, opt := range f.Options {
			if strings.TrimSpace(opt) == "" {
				fail("option #%d is empty", i+1)
			}
		}
	}
	if v := f.Validation; v != nil && f.Type == Text {
		if v.MinLength != nil && *v.MinLength < 0 {
			fail("minLength is negative")
		}
		if v.MaxLength != nil && *v.MaxLength < 0 {
			fail("maxLength is negative")
		}
		if v.MinLength != nil && v.MaxLength != nil && *v.MinLength > *v.MaxLength {
			fail("minLength %d exceeds maxLength %d", *v.MinLength, *v.MaxLength)
		}
		if v.Pattern != "" {
			if _, err := regexp.Compile(v.Pattern); err != nil {
				fail("invalid pattern: %s", err)
			}
		}
	}

	return result.ErrorOrNil()
}
