package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) ListForms(ctx context.Context) ([]model.FormDefinition, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT f.id, f.slug, f.title, f.description, f.created_at, f.updated_at
		FROM form f
		ORDER BY f.id`)
	if err != nil {
		return nil, store.Unavailable("db.list_forms", err)
	}
	defer rows.Close()

	var ids []int64
	forms := []model.FormDefinition{}
	for rows.Next() {
		var id int64
		form := model.FormDefinition{}
		err = rows.Scan(&id, &form.Slug, &form.Title, &form.Description, &form.CreatedAt, &form.UpdatedAt)
		if err != nil {
			return nil, store.Unavailable("db.list_forms.scan", err)
		}
		ids = append(ids, id)
		forms = append(forms, form)
	}
	if err = rows.Err(); err != nil {
		return nil, store.Unavailable("db.list_forms", err)
	}
	rows.Close()

	for i := range forms {
		forms[i].Fields, err = loadFields(ctx, db, ids[i])
		if err != nil {
			return nil, err
		}
	}
	return forms, nil
}

func (db *DB) LoadForm(ctx context.Context, slug string) (model.FormDefinition, error) {
	_, form, err := loadForm(ctx, db, slug)
	return form, err
}

func loadForm(ctx context.Context, q querier, slug string) (int64, model.FormDefinition, error) {
	var id int64
	form := model.FormDefinition{}
	err := q.QueryRowContext(ctx, `
		SELECT f.id, f.slug, f.title, f.description, f.created_at, f.updated_at
		FROM form f
		WHERE f.slug = ?`,
		slug,
	).Scan(&id, &form.Slug, &form.Title, &form.Description, &form.CreatedAt, &form.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, form, store.ErrNotFound
	}
	if err != nil {
		return 0, form, store.Unavailable("db.load_form", err)
	}

	form.Fields, err = loadFields(ctx, q, id)
	if err != nil {
		return 0, form, err
	}
	return id, form, nil
}

func loadFields(ctx context.Context, q querier, formID int64) ([]model.FieldDefinition, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ff.field_key, ff.type, ff.label, ff.required, ff.options, ff.validation
		FROM form_field ff
		WHERE ff.form_id = ?
		ORDER BY ff.position`,
		formID,
	)
	if err != nil {
		return nil, store.Unavailable("db.load_form.fields", err)
	}
	defer rows.Close()

	fields := []model.FieldDefinition{}
	for rows.Next() {
		f := model.FieldDefinition{}
		var opts, validation string
		err = rows.Scan(&f.ID, &f.Type, &f.Label, &f.Required, &opts, &validation)
		if err != nil {
			return nil, store.Unavailable("db.load_form.fields.scan", err)
		}

		if opts != "" {
			err = json.Unmarshal([]byte(opts), &f.Options)
			if err != nil {
				return nil, store.Unavailable("db.load_form.fields.parse_options", err)
			}
		}
		if validation != "" {
			f.Validation = &model.Validation{}
			err = json.Unmarshal([]byte(validation), f.Validation)
			if err != nil {
				return nil, store.Unavailable("db.load_form.fields.parse_validation", err)
			}
		}

		fields = append(fields, f)
	}
	if err = rows.Err(); err != nil {
		return nil, store.Unavailable("db.load_form.fields", err)
	}
	return fields, nil
}

func (db *DB) CreateForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error) {
	return db.writeForm(ctx, form, true)
}

func (db *DB) SaveForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error) {
	return db.writeForm(ctx, form, false)
}

func (db *DB) writeForm(ctx context.Context, form model.FormDefinition, create bool) (model.FormDefinition, error) {
	form = form.Clone()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return form, store.Unavailable("db.begin_tx", err)
	}
	defer tx.Rollback()

	var formID int64
	var created time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT f.id, f.created_at FROM form f WHERE f.slug = ?`,
		form.Slug,
	).Scan(&formID, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		store.Stamp(&form, time.Time{})
		err = tx.QueryRowContext(ctx, `
			INSERT INTO form (slug, title, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`,
			form.Slug,
			form.Title,
			form.Description,
			form.CreatedAt,
			form.UpdatedAt,
		).Scan(&formID)
		if err != nil {
			return form, store.Unavailable("db.insert_form", err)
		}
	case err != nil:
		return form, store.Unavailable("db.save_form.lookup", err)
	case create:
		return form, store.ErrExists
	default:
		store.Stamp(&form, created)
		_, err = tx.ExecContext(ctx, `
			UPDATE form
			SET
				title = ?,
				description = ?,
				updated_at = ?
			WHERE id = ?`,
			form.Title,
			form.Description,
			form.UpdatedAt,
			formID,
		)
		if err != nil {
			return form, store.Unavailable("db.update_form", err)
		}

		// delete all fields
		_, err = tx.ExecContext(ctx, `
			DELETE FROM form_field
			WHERE form_id = ?`,
			formID,
		)
		if err != nil {
			return form, store.Unavailable("db.update_form.delete_fields", err)
		}
	}

	// recreate all fields
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO form_field (form_id, position, field_key, type, label, required, options, validation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return form, store.Unavailable("db.save_form.fields.prepare", err)
	}
	defer stmt.Close()

	for i, f := range form.Fields {
		var optionsJson, validationJson []byte
		if f.Options != nil {
			optionsJson, err = json.Marshal(f.Options)
			if err != nil {
				return form, store.Unavailable("db.save_form.fields.encode_options", err)
			}
		}
		if f.Validation != nil {
			validationJson, err = json.Marshal(f.Validation)
			if err != nil {
				return form, store.Unavailable("db.save_form.fields.encode_validation", err)
			}
		}
		_, err = stmt.ExecContext(ctx, formID, i, f.ID, f.Type, f.Label, f.Required, string(optionsJson), string(validationJson))
		if err != nil {
			return form, store.Unavailable("db.save_form.fields.insert", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return form, store.Unavailable("db.save_form.commit", err)
	}
	return form, nil
}

func (db *DB) DeleteForm(ctx context.Context, slug string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("db.begin_tx", err)
	}
	defer tx.Rollback()

	var formID int64
	err = tx.QueryRowContext(ctx, `SELECT f.id FROM form f WHERE f.slug = ?`, slug).Scan(&formID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return store.Unavailable("db.delete_form.lookup", err)
	}

	for _, q := range []string{
		`DELETE FROM response_value WHERE response_id IN (SELECT r.id FROM response r WHERE r.form_id = ?)`,
		`DELETE FROM response WHERE form_id = ?`,
		`DELETE FROM form_field WHERE form_id = ?`,
		`DELETE FROM form WHERE id = ?`,
	} {
		_, err = tx.ExecContext(ctx, q, formID)
		if err != nil {
			return store.Unavailable("db.delete_form", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return store.Unavailable("db.delete_form.commit", err)
	}
	return nil
}

func (db *DB) SaveDraft(ctx context.Context, key string, form model.FormDefinition) error {
	form = form.Clone()
	store.Stamp(&form, time.Time{})
	body, err := json.Marshal(form)
	if err != nil {
		return store.Unavailable("db.save_draft.encode", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO draft (key, body, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at`,
		key,
		string(body),
		form.CreatedAt,
		form.UpdatedAt,
	)
	if err != nil {
		return store.Unavailable("db.save_draft", err)
	}
	return nil
}

func (db *DB) LoadDraft(ctx context.Context, key string) (model.FormDefinition, error) {
	form := model.FormDefinition{}
	var body string
	err := db.QueryRowContext(ctx, `
		SELECT d.body, d.created_at, d.updated_at FROM draft d WHERE d.key = ?`,
		key,
	).Scan(&body, &form.CreatedAt, &form.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return form, store.ErrNotFound
	}
	if err != nil {
		return form, store.Unavailable("db.load_draft", err)
	}

	created, updated := form.CreatedAt, form.UpdatedAt
	err = json.Unmarshal([]byte(body), &form)
	if err != nil {
		return form, store.Unavailable("db.load_draft.decode", err)
	}
	form.CreatedAt, form.UpdatedAt = created, updated
	return form, nil
}
