// Package store defines the persistence boundary of forms and responses.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbolis/quick-form/model"
)

var (
	// ErrNotFound reports that nothing is stored under the requested key.
	ErrNotFound = errors.New("not found")
	// ErrExists reports a create on a key already in use.
	ErrExists = errors.New("already exists")
	// ErrUnavailable wraps every failure of the storage backend itself.
	ErrUnavailable = errors.New("storage unavailable")
)

// Unavailable marks err as a backend failure of operation op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// UnnamedDraft keys drafts saved before the form has a slug.
const UnnamedDraft = "unnamed"

func DraftKey(slug string) string {
	if slug == "" {
		return UnnamedDraft
	}
	return slug
}

// FormStore persists form definitions, drafts and responses. Forms are keyed
// by slug. Implementations must not retain references to the values passed
// in or handed out.
type FormStore interface {
	ListForms(ctx context.Context) ([]model.FormDefinition, error)
	LoadForm(ctx context.Context, slug string) (model.FormDefinition, error)
	// CreateForm fails with ErrExists if the slug is taken.
	CreateForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error)
	// SaveForm creates or replaces the form stored under form.Slug.
	SaveForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error)
	// DeleteForm removes a form and all its responses.
	DeleteForm(ctx context.Context, slug string) error

	SaveDraft(ctx context.Context, key string, form model.FormDefinition) error
	LoadDraft(ctx context.Context, key string) (model.FormDefinition, error)

	// ListResponses returns the responses to a form, oldest first.
	ListResponses(ctx context.Context, slug string) ([]model.ResponseRecord, error)
	AppendResponse(ctx context.Context, slug string, r model.ResponseRecord) error
	HasResponseFrom(ctx context.Context, slug, ip string) (bool, error)
}

// UserStore keeps admin credentials and issued OAuth token ids.
type UserStore interface {
	PasswordHash(ctx context.Context, username string) ([]byte, error)
	PutUser(ctx context.Context, username string, hash []byte) error
	StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error
	// ConsumeToken deletes a stored token and returns its expiration.
	ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) (time.Time, error)
}

// Store is a complete storage backend.
type Store interface {
	FormStore
	UserStore
	Close() error
}

// Stamp sets the creation and update times of a form being saved. created is
// the creation time of the stored version, zero for a new form.
func Stamp(form *model.FormDefinition, created time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		created = now
	}
	form.CreatedAt = created
	form.UpdatedAt = now
}
