package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"petcare-console/internal/api"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// GetValue returns the stored value for key and whether it exists.
func (db *DB) GetValue(key string) (string, bool, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetValue upserts key.
func (db *DB) SetValue(key, value string) error {
	_, err := db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`, key, value)
	return err
}

// DeleteValue removes key; a missing key is not an error.
func (db *DB) DeleteValue(key string) error {
	_, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// SaveSession stores the token and user record together.
func (db *DB) SaveSession(token string, user api.User) error {
	user.Password = ""
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for k, v := range map[string]string{keyToken: token, keyUser: string(data)} {
		if _, err := tx.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadSession returns the stored token and user. A missing session returns
// an empty token and nil user.
func (db *DB) LoadSession() (string, *api.User, error) {
	token, ok, err := db.GetValue(keyToken)
	if err != nil || !ok {
		return "", nil, err
	}
	raw, ok, err := db.GetValue(keyUser)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return token, nil, nil
	}
	var u api.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return token, nil, fmt.Errorf("decode user: %w", err)
	}
	return token, &u, nil
}

// ClearSession forgets the token and user.
func (db *DB) ClearSession() error {
	_, err := db.Exec(`DELETE FROM kv WHERE key IN (?, ?)`, keyToken, keyUser)
	return err
}
