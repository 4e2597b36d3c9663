package db

import (
	"context"
	"database/sql"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Run struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	Notified   int64
	Failed     int64
	Skipped    int64
}

type RunCity struct {
	RunID         string
	City          string
	PreviousPhase string
	NextPhase     string
	Notified      int64
	Failed        int64
	Note          string
}

type CreateRunParams struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	Notified   int64
	Failed     int64
	Skipped    int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, notified, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.StartedAt, arg.FinishedAt, arg.Notified, arg.Failed, arg.Skipped,
	)
	return err
}

type CreateRunCityParams struct {
	RunID         string
	City          string
	PreviousPhase string
	NextPhase     string
	Notified      int64
	Failed        int64
	Note          string
}

func (q *Queries) CreateRunCity(ctx context.Context, arg CreateRunCityParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO run_cities (run_id, city, previous_phase, next_phase, notified, failed, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.RunID, arg.City, arg.PreviousPhase, arg.NextPhase, arg.Notified, arg.Failed, arg.Note,
	)
	return err
}

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, notified, failed, skipped
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Notified, &r.Failed, &r.Skipped)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) ListRunCities(ctx context.Context, runID string) ([]RunCity, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT run_id, city, previous_phase, next_phase, notified, failed, note
		 FROM run_cities WHERE run_id = ? ORDER BY city`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunCity
	for rows.Next() {
		var c RunCity
		err := rows.Scan(&c.RunID, &c.City, &c.PreviousPhase, &c.NextPhase, &c.Notified, &c.Failed, &c.Note)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
