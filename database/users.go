package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mbolis/quick-form/store"
)

func (db *DB) PasswordHash(ctx context.Context, username string) ([]byte, error) {
	var hash []byte
	err := db.
		QueryRowContext(ctx, "SELECT password_hash FROM user WHERE username = ?", username).
		Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("db.get_user", err)
	}
	return hash, nil
}

func (db *DB) PutUser(ctx context.Context, username string, hash []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user (username, password_hash) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash`,
		username,
		hash,
	)
	if err != nil {
		return store.Unavailable("db.put_user", err)
	}
	return nil
}

func (db *DB) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		username,
		tokenID,
		refreshTokenID,
		expiration.UTC(),
	)
	if err != nil {
		return store.Unavailable("db.store_token", err)
	}
	return nil
}

func (db *DB) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) (time.Time, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, store.Unavailable("db.begin_tx", err)
	}
	defer tx.Rollback()

	var rowID int64
	var expiration time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT rowid, expiration FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?`,
		username,
		tokenID,
		refreshTokenID,
	).Scan(&rowID, &expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, store.ErrNotFound
	}
	if err != nil {
		return time.Time{}, store.Unavailable("db.consume_token", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM token WHERE rowid = ?", rowID)
	if err != nil {
		return time.Time{}, store.Unavailable("db.consume_token.delete", err)
	}

	err = tx.Commit()
	if err != nil {
		return time.Time{}, store.Unavailable("db.consume_token.commit", err)
	}
	return expiration, nil
}
