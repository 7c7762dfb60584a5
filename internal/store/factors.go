package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RusaUB/nexintel/internal/factor"
)

// SaveFactors persists a batch of textual factors and their
// observations under the given run, atomically.
func (s *SQLiteStore) SaveFactors(ctx context.Context, runID string, factors []*factor.TextualFactor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, f := range factors {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO factors (run_id, date, agent_name, preference, length_tokens, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, f.Date.Format("2006-01-02"), f.AgentName, f.Preference, f.LengthTokens, now)
		if err != nil {
			return fmt.Errorf("inserting factor %s: %w", f.AgentName, err)
		}
		factorID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("factor id: %w", err)
		}
		for _, o := range f.Observations {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO observations (factor_id, text, asset, rating, tags)
				VALUES (?, ?, ?, ?, ?)`,
				factorID, o.Text, o.Asset, o.Rating, strings.Join(o.Tags, ","))
			if err != nil {
				return fmt.Errorf("inserting observation: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ListFactors returns persisted factors, newest first.
func (s *SQLiteStore) ListFactors(ctx context.Context, opts ListOpts) ([]*FactorRow, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	query := `
		SELECT f.id, f.run_id, f.date, f.agent_name, f.preference, f.length_tokens,
		       (SELECT COUNT(*) FROM observations o WHERE o.factor_id = f.id),
		       f.created_at
		FROM factors f`
	var conds []string
	var args []any
	if opts.AgentName != "" {
		conds = append(conds, "f.agent_name = ?")
		args = append(args, opts.AgentName)
	}
	if opts.Date != "" {
		conds = append(conds, "f.date = ?")
		args = append(args, opts.Date)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY f.id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing factors: %w", err)
	}
	defer rows.Close()

	var out []*FactorRow
	for rows.Next() {
		var fr FactorRow
		var created string
		if err := rows.Scan(&fr.ID, &fr.RunID, &fr.Date, &fr.AgentName, &fr.Preference,
			&fr.LengthTokens, &fr.ObsCount, &created); err != nil {
			return nil, fmt.Errorf("scanning factor: %w", err)
		}
		fr.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, &fr)
	}
	return out, rows.Err()
}

// ListObservations returns the observations of one factor in insert order.
func (s *SQLiteStore) ListObservations(ctx context.Context, factorID int64) ([]*ObservationRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, factor_id, text, asset, rating, tags
		FROM observations WHERE factor_id = ? ORDER BY id`, factorID)
	if err != nil {
		return nil, fmt.Errorf("listing observations: %w", err)
	}
	defer rows.Close()

	var out []*ObservationRow
	for rows.Next() {
		var o ObservationRow
		if err := rows.Scan(&o.ID, &o.FactorID, &o.Text, &o.Asset, &o.Rating, &o.Tags); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// Stats returns row counts and the database size on disk.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM runs", &st.RunCount},
		{"SELECT COUNT(*) FROM factors", &st.FactorCount},
		{"SELECT COUNT(*) FROM observations", &st.ObservationCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			st.DBSizeBytes = pageCount * pageSize
		}
	}
	return st, nil
}
