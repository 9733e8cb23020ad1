// Package seed loads sample forms from YAML and installs them into a store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

//go:embed forms.yaml
var defaultForms []byte

type file struct {
	Forms []model.FormDefinition `yaml:"forms"`
}

// Load parses a YAML seed file. Every form is checked and all problems are
// reported together.
func Load(r io.Reader) ([]model.FormDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	var result error
	seen := map[string]bool{}
	for i, form := range f.Forms {
		if err := form.Check(); err != nil {
			result = multierror.Append(result, fmt.Errorf("form #%d (%s): %w", i+1, form.Slug, err))
		}
		if seen[form.Slug] {
			result = multierror.Append(result, fmt.Errorf("form #%d: duplicate slug %q", i+1, form.Slug))
		}
		seen[form.Slug] = true
	}
	if result != nil {
		return nil, result
	}
	return f.Forms, nil
}

func Default() ([]model.FormDefinition, error) {
	return Load(bytes.NewReader(defaultForms))
}

// Apply creates the forms that are not in s yet and returns how many it added.
func Apply(ctx context.Context, s store.FormStore, forms []model.FormDefinition) (int, error) {
	created := 0
	for _, form := range forms {
		_, err := s.CreateForm(ctx, form)
		if errors.Is(err, store.ErrExists) {
			log.Debugf("seed: form %s already present", form.Slug)
			continue
		}
		if err != nil {
			return created, err
		}
		log.Infof("seed: created form %s", form.Slug)
		created++
	}
	return created, nil
}
