package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"voxrecipe/internal/services"
)

// BeginRun inserts a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, expname, start_stage, stop_stage, nj, config_path, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ExpName, run.Start, run.Stop, run.NJ, run.ConfigPath, string(StatusRunning), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status Status, message string) error {
	now := time.Now()
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(status), nullableString(message), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, id)
}

// StageStarted records a stage entering execution.
func (s *Store) StageStarted(ctx context.Context, runID string, index int, name string, at time.Time) error {
	_, err := s.exec(ctx,
		`INSERT INTO stage_runs (run_id, stage_index, stage_name, status, started_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, stage_index) DO UPDATE SET status = excluded.status, started_at = excluded.started_at`,
		runID, index, name, string(StatusRunning), formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("insert stage run: %w", err)
	}
	return nil
}

// StageFinished records the outcome of a stage.
func (s *Store) StageFinished(ctx context.Context, rec StageRun) error {
	finished := time.Now()
	if rec.FinishedAt != nil {
		finished = *rec.FinishedAt
	}
	res, err := s.exec(ctx,
		`UPDATE stage_runs
		 SET status = ?, failed_subjobs = ?, total_subjobs = ?, failed_partitions = ?,
		     error_kind = ?, error_message = ?, finished_at = ?
		 WHERE run_id = ? AND stage_index = ?`,
		string(rec.Status), rec.FailedSubJobs, rec.TotalSubJobs, nullableString(encodePartitions(rec.FailedPartitions)),
		nullableString(rec.ErrorKind), nullableString(rec.Error), formatTime(finished),
		rec.RunID, rec.Index,
	)
	if err != nil {
		return fmt.Errorf("update stage run: %w", err)
	}
	return requireRow(res, fmt.Sprintf("%s/%d", rec.RunID, rec.Index))
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expname, start_stage, stop_stage, nj, config_path, status, error_message, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run and its stage records in index order. A run id prefix
// is accepted when it is unambiguous.
func (s *Store) GetRun(ctx context.Context, id string) (Run, []StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expname, start_stage, stop_stage, nj, config_path, status, error_message, started_at, finished_at
		 FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("query run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			rows.Close()
			return Run{}, nil, scanErr
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Run{}, nil, err
	}
	switch len(matches) {
	case 0:
		return Run{}, nil, services.Wrap(services.ErrNotFound, "history", "get run", "no run matches "+id, nil)
	case 2:
		return Run{}, nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	run := matches[0]

	stages, err := s.stagesFor(ctx, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, stages, nil
}

// LastFailure returns the most recent failed stage recorded for expname.
func (s *Store) LastFailure(ctx context.Context, expname string) (*StageRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sr.run_id, sr.stage_index, sr.stage_name, sr.status, sr.failed_subjobs, sr.total_subjobs,
		        sr.failed_partitions, sr.error_kind, sr.error_message, sr.started_at, sr.finished_at
		 FROM stage_runs sr JOIN runs r ON r.id = sr.run_id
		 WHERE r.expname = ? AND sr.status = ?
		 ORDER BY sr.started_at DESC LIMIT 1`, expname, string(StatusFailed))
	rec, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) stagesFor(ctx context.Context, runID string) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage_index, stage_name, status, failed_subjobs, total_subjobs,
		        failed_partitions, error_kind, error_message, started_at, finished_at
		 FROM stage_runs WHERE run_id = ? ORDER BY stage_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage runs: %w", err)
	}
	defer rows.Close()

	var out []StageRun
	for rows.Next() {
		rec, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		status     string
		configPath sql.NullString
		message    sql.NullString
		started    sql.NullString
		finished   sql.NullString
	)
	if err := row.Scan(&run.ID, &run.ExpName, &run.Start, &run.Stop, &run.NJ, &configPath, &status, &message, &started, &finished); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.ConfigPath = configPath.String
	run.Error = message.String
	if t := parseTime(started); t != nil {
		run.StartedAt = *t
	}
	run.FinishedAt = parseTime(finished)
	return run, nil
}

func scanStage(row scanner) (StageRun, error) {
	var (
		rec        StageRun
		status     string
		partitions sql.NullString
		kind       sql.NullString
		message    sql.NullString
		started    sql.NullString
		finished   sql.NullString
	)
	err := row.Scan(&rec.RunID, &rec.Index, &rec.Name, &status, &rec.FailedSubJobs, &rec.TotalSubJobs,
		&partitions, &kind, &message, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return StageRun{}, err
	}
	if err != nil {
		return StageRun{}, fmt.Errorf("scan stage run: %w", err)
	}
	rec.Status = Status(status)
	rec.FailedPartitions = decodePartitions(partitions.String)
	rec.ErrorKind = kind.String
	rec.Error = message.String
	if t := parseTime(started); t != nil {
		rec.StartedAt = *t
	}
	rec.FinishedAt = parseTime(finished)
	return rec, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func requireRow(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "update", "no record for "+key, nil)
	}
	return nil
}
