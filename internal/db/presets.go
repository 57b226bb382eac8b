package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"risk-models/internal/apperr"
	"risk-models/internal/montecarlo"
	"risk-models/internal/portfolio"
)

// PresetKind tags what a stored scenario describes.
type PresetKind string

const (
	KindBatch     PresetKind = "batch"
	KindPortfolio PresetKind = "portfolio"
)

// Preset is a named, stored scenario input.
type Preset struct {
	Name      string          `json:"name"`
	Kind      PresetKind      `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt string          `json:"updated_at"`
}

// SavePreset stores payload as JSON under name, replacing any previous preset.
func (d *DB) SavePreset(name string, kind PresetKind, payload interface{}) error {
	if name == "" {
		return apperr.Invalid("preset name is empty")
	}
	if kind != KindBatch && kind != KindPortfolio {
		return apperr.Invalid("unknown preset kind %q", kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode preset %s: %w", name, err)
	}
	_, err = d.sql.Exec(
		"INSERT OR REPLACE INTO scenario_presets (name, kind, payload, updated_at) VALUES (?, ?, ?, ?)",
		name, string(kind), string(data), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetPreset returns the named preset or apperr.ErrNotFound.
func (d *DB) GetPreset(name string) (*Preset, error) {
	var p Preset
	var kind, payload string
	err := d.sql.QueryRow(
		"SELECT name, kind, payload, updated_at FROM scenario_presets WHERE name = ?", name,
	).Scan(&p.Name, &kind, &payload, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preset %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.Kind = PresetKind(kind)
	p.Payload = json.RawMessage(payload)
	return &p, nil
}

// ListPresets returns presets ordered by name. An empty kind lists all.
func (d *DB) ListPresets(kind PresetKind) ([]Preset, error) {
	query := "SELECT name, kind, payload, updated_at FROM scenario_presets"
	var args []interface{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY name"

	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	presets := []Preset{}
	for rows.Next() {
		var p Preset
		var k, payload string
		if err := rows.Scan(&p.Name, &k, &payload, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Kind = PresetKind(k)
		p.Payload = json.RawMessage(payload)
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// DeletePreset removes the named preset or returns apperr.ErrNotFound.
func (d *DB) DeletePreset(name string) error {
	res, err := d.sql.Exec("DELETE FROM scenario_presets WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("preset %q: %w", name, apperr.ErrNotFound)
	}
	return nil
}

// SaveBatch stores a simulation batch preset after validating it.
func (d *DB) SaveBatch(name string, b montecarlo.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return d.SavePreset(name, KindBatch, b)
}

// LoadBatch decodes a stored simulation batch.
func (d *DB) LoadBatch(name string) (*montecarlo.Batch, error) {
	var b montecarlo.Batch
	if err := d.loadTyped(name, KindBatch, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SavePortfolio stores an optimization problem preset after validating it.
func (d *DB) SavePortfolio(name string, p portfolio.Problem) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("portfolio preset %q: %w", name, err)
	}
	return d.SavePreset(name, KindPortfolio, p)
}

// LoadPortfolio decodes a stored optimization problem.
func (d *DB) LoadPortfolio(name string) (*portfolio.Problem, error) {
	var p portfolio.Problem
	if err := d.loadTyped(name, KindPortfolio, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) loadTyped(name string, kind PresetKind, out interface{}) error {
	p, err := d.GetPreset(name)
	if err != nil {
		return err
	}
	if p.Kind != kind {
		return apperr.Invalid("preset %q is a %s, not a %s", name, p.Kind, kind)
	}
	if err := json.Unmarshal(p.Payload, out); err != nil {
		return fmt.Errorf("decode preset %s: %w", name, err)
	}
	return nil
}
