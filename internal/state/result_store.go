// ./internal/state/result_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

// ErrRunNotFound indicates no run exists for the requested date.
var ErrRunNotFound = errors.New("no CLF run found")

// SaveRun persists a finished ProtocolResult for the given run date,
// replacing any earlier result for the same date.
func SaveRun(runDate time.Time, endBlock uint64, result types.ProtocolResult) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal protocol result: %w", err)
	}

	query := `
		INSERT INTO clf_runs (run_date, end_block, result)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT uq_clf_runs_date
		DO UPDATE SET end_block = EXCLUDED.end_block, result = EXCLUDED.result, created_at = CURRENT_TIMESTAMP
		RETURNING run_id;
	`

	var runID int64
	err = DB.QueryRow(query, runDate.UTC().Format("2006-01-02"), int64(endBlock), resultJSON).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to save CLF run: %w", err)
	}

	log.Info().
		Int64("run_id", runID).
		Str("run_date", runDate.UTC().Format("2006-01-02")).
		Uint64("end_block", endBlock).
		Msg("CLF run saved to database")

	return runID, nil
}

// GetLatestRun returns the most recent persisted run.
func GetLatestRun() (*types.RunRecord, error) {
	query := `
		SELECT run_date, end_block, result, created_at
		FROM clf_runs
		ORDER BY run_date DESC
		LIMIT 1;
	`
	return scanRun(DB.QueryRow(query))
}

// GetRunByDate returns the persisted run for one date.
func GetRunByDate(runDate time.Time) (*types.RunRecord, error) {
	query := `
		SELECT run_date, end_block, result, created_at
		FROM clf_runs
		WHERE run_date = $1;
	`
	return scanRun(DB.QueryRow(query, runDate.UTC().Format("2006-01-02")))
}

// ListRunDates returns the most recent run dates, newest first.
func ListRunDates(limit int) ([]time.Time, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT run_date
		FROM clf_runs
		ORDER BY run_date DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan run date: %w", err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating run dates: %w", err)
	}

	return dates, nil
}

func scanRun(row *sql.Row) (*types.RunRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var record types.RunRecord
	var endBlock int64
	var resultJSON []byte

	err := row.Scan(&record.RunDate, &endBlock, &resultJSON, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan CLF run: %w", err)
	}

	record.EndBlock = uint64(endBlock)
	if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protocol result: %w", err)
	}

	return &record, nil
}
