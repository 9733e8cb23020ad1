package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbolis/quick-form/model"
)

type token struct {
	username, tokenID, refreshTokenID string
}

// Memory keeps everything in process memory.
type Memory struct {
	mu        sync.RWMutex
	forms     map[string]model.FormDefinition
	order     []string
	drafts    map[string]model.FormDefinition
	responses map[string][]model.ResponseRecord
	users     map[string][]byte
	tokens    map[token]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		forms:     map[string]model.FormDefinition{},
		drafts:    map[string]model.FormDefinition{},
		responses: map[string][]model.ResponseRecord{},
		users:     map[string][]byte{},
		tokens:    map[token]time.Time{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) ListForms(ctx context.Context) ([]model.FormDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	forms := make([]model.FormDefinition, 0, len(m.order))
	for _, slug := range m.order {
		forms = append(forms, m.forms[slug].Clone())
	}
	return forms, nil
}

func (m *Memory) LoadForm(ctx context.Context, slug string) (model.FormDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	form, ok := m.forms[slug]
	if !ok {
		return model.FormDefinition{}, ErrNotFound
	}
	return form.Clone(), nil
}

func (m *Memory) CreateForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.forms[form.Slug]; ok {
		return model.FormDefinition{}, ErrExists
	}
	return m.put(form, time.Time{}), nil
}

func (m *Memory) SaveForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.put(form, m.forms[form.Slug].CreatedAt), nil
}

func (m *Memory) put(form model.FormDefinition, created time.Time) model.FormDefinition {
	form = form.Clone()
	Stamp(&form, created)
	if _, ok := m.forms[form.Slug]; !ok {
		m.order = append(m.order, form.Slug)
	}
	m.forms[form.Slug] = form
	return form.Clone()
}

func (m *Memory) DeleteForm(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.forms[slug]; !ok {
		return ErrNotFound
	}
	delete(m.forms, slug)
	delete(m.responses, slug)
	for i, s := range m.order {
		if s == slug {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) SaveDraft(ctx context.Context, key string, form model.FormDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	form = form.Clone()
	Stamp(&form, m.drafts[key].CreatedAt)
	m.drafts[key] = form
	return nil
}

func (m *Memory) LoadDraft(ctx context.Context, key string) (model.FormDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	form, ok := m.drafts[key]
	if !ok {
		return model.FormDefinition{}, ErrNotFound
	}
	return form.Clone(), nil
}

func (m *Memory) ListResponses(ctx context.Context, slug string) ([]model.ResponseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	form, ok := m.forms[slug]
	if !ok {
		return nil, ErrNotFound
	}
	stored := m.responses[slug]
	out := make([]model.ResponseRecord, len(stored))
	for i, r := range stored {
		out[i] = r.Clone()
		out[i].Data = form.Conform(out[i].Data)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) AppendResponse(ctx context.Context, slug string, r model.ResponseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.forms[slug]; !ok {
		return ErrNotFound
	}
	for _, prev := range m.responses[slug] {
		if prev.ID == r.ID {
			return ErrExists
		}
	}
	r = r.Clone()
	r.FormSlug = slug
	m.responses[slug] = append(m.responses[slug], r)
	return nil
}

func (m *Memory) HasResponseFrom(ctx context.Context, slug, ip string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.responses[slug] {
		if r.IP == ip {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) PasswordHash(ctx context.Context, username string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), hash...), nil
}

func (m *Memory) PutUser(ctx context.Context, username string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[username] = append([]byte(nil), hash...)
	return nil
}

func (m *Memory) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[token{username, tokenID, refreshTokenID}] = expiration
	return nil
}

func (m *Memory) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := token{username, tokenID, refreshTokenID}
	expiration, ok := m.tokens[key]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	delete(m.tokens, key)
	return expiration, nil
}
