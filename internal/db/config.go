package db

import (
	"fmt"

	"risk-models/internal/config"
)

// ConfigOverrides returns every persisted config key/value pair.
func (d *DB) ConfigOverrides() (map[string]string, error) {
	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, rows.Err()
}

// LoadConfig applies the persisted overrides on top of base.
// Keys the current build no longer knows are ignored.
func (d *DB) LoadConfig(base *config.Config) (*config.Config, error) {
	stored, err := d.ConfigOverrides()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool)
	for _, k := range config.Keys() {
		known[k] = true
	}
	for k := range stored {
		if !known[k] {
			delete(stored, k)
		}
	}
	return config.WithOverrides(base, stored)
}

// SaveConfig writes every field of cfg (upsert).
func (d *DB) SaveConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return d.upsertConfig(config.Flatten(cfg))
}

// SetConfigValue persists a single dotted key after checking it parses.
func (d *DB) SetConfigValue(key, value string) error {
	if _, err := config.WithOverrides(config.Default(), map[string]string{key: value}); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return d.upsertConfig(map[string]string{key: value})
}

// ResetConfig removes all persisted overrides.
func (d *DB) ResetConfig() error {
	_, err := d.sql.Exec("DELETE FROM config")
	return err
}

func (d *DB) upsertConfig(pairs map[string]string) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
