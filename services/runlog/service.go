// Package runlog keeps the per-run operational summaries. It records
// phase transitions and delivery counts, never price data.
package runlog

import (
	"context"
	"database/sql"
	"strings"

	"fuelalert/services/runlog/db"
	"fuelalert/services/watch"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/runlog")

type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) (Service, error) {
	_, err := database.Exec(db.Schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return Service{}, err
	}
	return Service{
		db:  database,
		qry: db.New(database),
	}, nil
}

// Record persists one run report atomically.
func (s Service) Record(ctx context.Context, report watch.Report) error {
	ctx, span := tracer.Start(ctx, "Record")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", report.ID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.CreateRun(ctx, db.CreateRunParams{
		ID:         report.ID,
		StartedAt:  report.StartedAt.Unix(),
		FinishedAt: report.FinishedAt.Unix(),
		Notified:   int64(report.NotifiedTotal()),
		Failed:     int64(report.FailureTotal()),
		Skipped:    int64(report.SkippedTotal()),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, city := range report.Cities {
		note := city.Skipped
		if note == "" {
			note = city.Warning
		}
		err = txqry.CreateRunCity(ctx, db.CreateRunCityParams{
			RunID:         report.ID,
			City:          city.City,
			PreviousPhase: city.Previous.String(),
			NextPhase:     city.Phase.String(),
			Notified:      int64(city.Notified),
			Failed:        int64(len(city.Failures)),
			Note:          note,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// History returns the most recent runs, newest first.
func (s Service) History(ctx context.Context, limit int) ([]db.Run, error) {
	ctx, span := tracer.Start(ctx, "History")
	defer span.End()

	runs, err := s.qry.ListRuns(ctx, int64(limit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return runs, nil
}

// Cities returns the per-city rows of one recorded run.
func (s Service) Cities(ctx context.Context, runID string) ([]db.RunCity, error) {
	ctx, span := tracer.Start(ctx, "Cities")
	defer span.End()

	rows, err := s.qry.ListRunCities(ctx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rows, nil
}
