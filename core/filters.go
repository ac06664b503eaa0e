package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// EventFilter restricts a listing. Nil bounds and an empty sell mode are not applied.
type EventFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	SellMode  string
}

// NewEventFilter reads the optional start_date and end_date bounds of a listing.
func NewEventFilter(query url.Values) (EventFilter, error) {
	var filter EventFilter

	fields := FieldErrors{}
	filter.StartDate = optionalBound(query, "start_date", fields)
	filter.EndDate = optionalBound(query, "end_date", fields)

	if len(fields) > 0 {
		return EventFilter{}, &ValidationError{Fields: fields}
	}

	return filter, nil
}

// NewOnlineEventFilter builds the filter of list_events: both bounds are mandatory.
func NewOnlineEventFilter(query url.Values) (EventFilter, error) {
	filter := EventFilter{SellMode: SellModeOnline}

	fields := FieldErrors{}
	filter.StartDate = requiredBound(query, "starts_at", fields)
	filter.EndDate = requiredBound(query, "ends_at", fields)

	if len(fields) > 0 {
		return EventFilter{}, &ValidationError{Fields: fields}
	}

	return filter, nil
}

// Where renders the filter as a SQL condition with positional arguments.
func (f EventFilter) Where() (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", len(args)))
	}

	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		conditions = append(conditions, fmt.Sprintf("end_date <= $%d", len(args)))
	}

	if f.SellMode != "" {
		args = append(args, f.SellMode)
		conditions = append(conditions, fmt.Sprintf("sell_mode = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func optionalBound(query url.Values, name string, fields FieldErrors) *time.Time {
	value := query.Get(name)
	if value == "" {
		return nil
	}

	t, err := ParseISODateTime(value)
	if err != nil {
		fields.Add(name, msgISODateFormat)
		return nil
	}

	return &t
}

func requiredBound(query url.Values, name string, fields FieldErrors) *time.Time {
	if query.Get(name) == "" {
		fields.Add(name, msgRequired)
		return nil
	}

	return optionalBound(query, name, fields)
}
