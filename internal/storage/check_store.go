package storage

import (
	"context"
	"database/sql"
	"fmt"

	"checkexplorer/internal/models"
)

// CheckStore serves a check's frequency history and probe selection.
type CheckStore struct {
	db *sql.DB
}

// NewCheckStore wraps an opened database.
func NewCheckStore(db *sql.DB) *CheckStore { return &CheckStore{db: db} }

// RecordEpoch stores a frequency change. Recording the same effective instant
// twice replaces the frequency.
func (s *CheckStore) RecordEpoch(ctx context.Context, checkID string, epoch models.ConfigEpoch) error {
	if epoch.FrequencyMs <= 0 {
		return fmt.Errorf("record epoch for %s: frequency must be positive", checkID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_epochs(check_id, frequency_ms, effective_from) VALUES(?, ?, ?)
		ON CONFLICT(check_id, effective_from) DO UPDATE SET frequency_ms = excluded.frequency_ms
	`, checkID, epoch.FrequencyMs, epoch.EffectiveFrom)
	if err != nil {
		return fmt.Errorf("record epoch for %s: %w", checkID, err)
	}
	return nil
}

// ConfigEpochs returns the frequency history of a check, oldest first.
func (s *CheckStore) ConfigEpochs(ctx context.Context, checkID string) ([]models.ConfigEpoch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frequency_ms, effective_from
		FROM check_epochs
		WHERE check_id = ?
		ORDER BY effective_from ASC
	`, checkID)
	if err != nil {
		return nil, fmt.Errorf("query epochs for %s: %w", checkID, err)
	}
	defer rows.Close()

	var epochs []models.ConfigEpoch
	for rows.Next() {
		var e models.ConfigEpoch
		if err := rows.Scan(&e.FrequencyMs, &e.EffectiveFrom); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		epochs = append(epochs, e)
	}
	return epochs, rows.Err()
}

// SetSelectedProbes replaces the probe selection of a check.
func (s *CheckStore) SetSelectedProbes(ctx context.Context, checkID string, probes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM probe_selection WHERE check_id = ?", checkID); err != nil {
		return fmt.Errorf("clear probes for %s: %w", checkID, err)
	}
	for i, probe := range probes {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO probe_selection(check_id, probe, position) VALUES(?, ?, ?)",
			checkID, probe, i,
		); err != nil {
			return fmt.Errorf("insert probe %s: %w", probe, err)
		}
	}
	return tx.Commit()
}

// SelectedProbes returns the probes selected for a check in display order.
func (s *CheckStore) SelectedProbes(ctx context.Context, checkID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT probe FROM probe_selection WHERE check_id = ? ORDER BY position ASC, probe ASC",
		checkID,
	)
	if err != nil {
		return nil, fmt.Errorf("query probes for %s: %w", checkID, err)
	}
	defer rows.Close()

	var probes []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan probe: %w", err)
		}
		probes = append(probes, p)
	}
	return probes, rows.Err()
}
