package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"event-service/pkg/resources"
)

const selectEventColumns = "id, external_id, name, start_date, end_date, sell_mode"

const insertEventSQL = "INSERT INTO events (external_id, name, start_date, end_date, sell_mode) " +
	"VALUES ($1, $2, $3, $4, $5) " +
	"RETURNING " + selectEventColumns

const updateEventSQL = "UPDATE events " +
	"SET external_id = $2, name = $3, start_date = $4, end_date = $5, sell_mode = $6 " +
	"WHERE id = $1 " +
	"RETURNING " + selectEventColumns

// Raw text values are cast to the column type by the database. Dates are parsed beforehand.
var rawColumnCasts = map[string]string{
	"external_id": "text",
	"name":        "text",
	"start_date":  "timestamptz",
	"end_date":    "timestamptz",
	"sell_mode":   "text",
}

type Repository interface {
	SaveEvent(ctx context.Context, event *Event) (*Event, error)
	SaveEvents(ctx context.Context, events []*Event) ([]*Event, error)
	UpdateEventByExternalId(ctx context.Context, externalId string, fields map[string]any) (int64, error)
	UpdateEvent(ctx context.Context, event *Event) (*Event, error)
	GetEventById(ctx context.Context, id int64) (*Event, error)
	FindEvents(ctx context.Context, filter EventFilter) ([]*Event, error)
}

type repository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	pool    resources.DBInstance
}

func NewRepository(pool resources.DBInstance) Repository {
	return &repository{
		tracer:  otel.GetTracerProvider().Tracer("event-service/core"),
		metrics: NewDBMetrics(),
		pool:    pool,
	}
}

func (r *repository) SaveEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.SaveEvent")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	savedEvent, err := insertEvent(ctx, tx, event)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return savedEvent, nil
}

func (r *repository) SaveEvents(ctx context.Context, events []*Event) ([]*Event, error) {
	if len(events) == 0 {
		return []*Event{}, nil
	}

	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_events", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.SaveEvents")
	defer span.End()

	span.SetAttributes(attribute.Int("events.count", len(events)))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	savedEvents := make([]*Event, 0, len(events))

	for _, event := range events {
		var savedEvent *Event

		savedEvent, err = insertEvent(ctx, tx, event)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}

		savedEvents = append(savedEvents, savedEvent)
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return savedEvents, nil
}

// UpdateEventByExternalId overwrites the columns present in fields with their raw values and
// returns the number of rows touched, zero when no event carries externalId.
func (r *repository) UpdateEventByExternalId(ctx context.Context, externalId string, fields map[string]any) (int64, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "update_event_by_external_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.UpdateEventByExternalId")
	defer span.End()

	sets := make([]string, 0, len(fields))
	args := []any{externalId}

	for _, column := range EventColumns {
		value, ok := fields[column]
		if !ok || column == "external_id" {
			continue
		}

		var arg any

		arg, err = rawColumnValue(column, value)
		if err != nil {
			return 0, fmt.Errorf("failed to update event by external_id: %s: %w", column, err)
		}

		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d::%s", column, len(args), rawColumnCasts[column]))
	}

	if len(sets) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, "UPDATE events SET "+strings.Join(sets, ", ")+" WHERE external_id = $1", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update event by external_id: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))

	return tag.RowsAffected(), nil
}

// UpdateEvent replaces every writable column of the event identified by event.Id.
func (r *repository) UpdateEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "update_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.UpdateEvent")
	defer span.End()

	updatedEvent, err := scanEvent(r.pool.QueryRow(ctx, updateEventSQL,
		event.Id, event.ExternalId, event.Name, event.StartDate, event.EndDate, event.SellMode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}

		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to update event %d: %w: %w", event.Id, ErrDuplicateExternalId, err)
		}

		return nil, fmt.Errorf("failed to update event %d: %w", event.Id, err)
	}

	return updatedEvent, nil
}

func (r *repository) GetEventById(ctx context.Context, id int64) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_event_by_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetEventById")
	defer span.End()

	e, err := scanEvent(r.pool.QueryRow(ctx,
		"SELECT "+selectEventColumns+" FROM events WHERE id = $1",
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}

		return nil, fmt.Errorf("failed to get event by id: %w", err)
	}

	return e, nil
}

func (r *repository) FindEvents(ctx context.Context, filter EventFilter) ([]*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "find_events", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.FindEvents")
	defer span.End()

	where, args := filter.Where()

	query := "SELECT " + selectEventColumns + " FROM events "
	if where != "" {
		query += where + " "
	}

	query += "ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0)

	for rows.Next() {
		var e *Event

		e, err = scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		events = append(events, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, event *Event) (*Event, error) {
	savedEvent, err := scanEvent(tx.QueryRow(ctx, insertEventSQL,
		event.ExternalId, event.Name, event.StartDate, event.EndDate, event.SellMode))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to insert event %q: %w: %w", event.ExternalId, ErrDuplicateExternalId, err)
		}

		return nil, fmt.Errorf("failed to insert event %q: %w", event.ExternalId, err)
	}

	return savedEvent, nil
}

func rawColumnValue(column string, value any) (any, error) {
	if value == nil {
		return nil, nil //nolint:nilnil
	}

	if rawColumnCasts[column] == "timestamptz" {
		return ParseRawDateTime(value)
	}

	text, _ := RawText(value)

	return text, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event

	err := row.Scan(&e.Id, &e.ExternalId, &e.Name, &e.StartDate, &e.EndDate, &e.SellMode)
	if err != nil {
		return nil, err
	}

	e.StartDate = e.StartDate.UTC()
	e.EndDate = e.EndDate.UTC()

	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

/*

 */

type DBMetrics struct {
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics() *DBMetrics {
	meter := otel.Meter("event-service/db")

	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", op), // ej: "save_event", "find_events"
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
