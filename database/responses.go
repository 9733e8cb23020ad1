package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

func (db *DB) ListResponses(ctx context.Context, slug string) ([]model.ResponseRecord, error) {
	formID, form, err := loadForm(ctx, db, slug)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.time, r.ip, v.field_key, v.value
		FROM response r
		LEFT OUTER JOIN response_value v ON (r.id = v.response_id)
		WHERE r.form_id = ?
		ORDER BY r.time, r.id`,
		formID,
	)
	if err != nil {
		return nil, store.Unavailable("db.list_responses", err)
	}
	defer rows.Close()

	responses := []model.ResponseRecord{}
	raw := []map[string]json.RawMessage{}
	for rows.Next() {
		r := model.ResponseRecord{FormSlug: slug}
		var key, value sql.NullString
		err = rows.Scan(&r.ID, &r.Timestamp, &r.IP, &key, &value)
		if err != nil {
			return nil, store.Unavailable("db.list_responses.scan", err)
		}

		lastIdx := len(responses) - 1
		if lastIdx < 0 || responses[lastIdx].ID != r.ID {
			responses = append(responses, r)
			raw = append(raw, map[string]json.RawMessage{})
			lastIdx++
		}
		if key.Valid {
			raw[lastIdx][key.String] = json.RawMessage(value.String)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, store.Unavailable("db.list_responses", err)
	}

	for i := range responses {
		responses[i].Data = model.DecodeData(form, raw[i])
	}
	return responses, nil
}

func (db *DB) AppendResponse(ctx context.Context, slug string, r model.ResponseRecord) error {
	values, err := model.EncodeData(r.Data)
	if err != nil {
		return err
	}

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
		return store.Unavailable("db.insert_response.lookup", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO response (id, form_id, time, ip) VALUES (?, ?, ?, ?)`,
		r.ID,
		formID,
		r.Timestamp.UTC(),
		r.IP,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return store.ErrExists
	}
	if err != nil {
		return store.Unavailable("db.insert_response", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO response_value (response_id, field_key, value)
		VALUES (?, ?, ?)`)
	if err != nil {
		return store.Unavailable("db.insert_response.values.prepare", err)
	}
	defer stmt.Close()

	for key, value := range values {
		_, err = stmt.ExecContext(ctx, r.ID, key, string(value))
		if err != nil {
			return store.Unavailable("db.insert_response.values.insert", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return store.Unavailable("db.insert_response.commit", err)
	}
	return nil
}

func (db *DB) HasResponseFrom(ctx context.Context, slug, ip string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM response r
		INNER JOIN form f ON (f.id = r.form_id)
		WHERE f.slug = ?
			AND r.ip = ?
		LIMIT 1`,
		slug,
		ip,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, store.Unavailable("db.get_ip", err)
	}
	return found, nil
}
