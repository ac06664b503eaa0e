package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]any {
	return map[string]any{
		"external_id": "291",
		"name":        "Camela en concierto",
		"start_date":  "2021-06-30T21:00:00Z",
		"end_date":    "2021-06-30T22:00:00",
		"sell_mode":   "online",
	}
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(raw map[string]any)
		wantErr    bool
		wantFields FieldErrors
		wantEvent  *Event
	}{
		{
			name:    "valid event",
			mutate:  func(map[string]any) {},
			wantErr: false,
			wantEvent: &Event{
				ExternalId: "291",
				Name:       "Camela en concierto",
				StartDate:  time.Date(2021, 6, 30, 21, 0, 0, 0, time.UTC),
				EndDate:    time.Date(2021, 6, 30, 22, 0, 0, 0, time.UTC),
				SellMode:   "online",
			},
		},
		{
			name: "end date before start date is accepted",
			mutate: func(raw map[string]any) {
				raw["end_date"] = "2021-06-29T00:00:00Z"
			},
			wantErr: false,
			wantEvent: &Event{
				ExternalId: "291",
				Name:       "Camela en concierto",
				StartDate:  time.Date(2021, 6, 30, 21, 0, 0, 0, time.UTC),
				EndDate:    time.Date(2021, 6, 29, 0, 0, 0, 0, time.UTC),
				SellMode:   "online",
			},
		},
		{
			name: "numeric external id and extra keys",
			mutate: func(raw map[string]any) {
				raw["external_id"] = float64(291)
				raw["id"] = float64(7)
				raw["organizer"] = "someone"
			},
			wantErr: false,
			wantEvent: &Event{
				ExternalId: "291",
				Name:       "Camela en concierto",
				StartDate:  time.Date(2021, 6, 30, 21, 0, 0, 0, time.UTC),
				EndDate:    time.Date(2021, 6, 30, 22, 0, 0, 0, time.UTC),
				SellMode:   "online",
			},
		},
		{
			name: "missing fields",
			mutate: func(raw map[string]any) {
				delete(raw, "name")
				delete(raw, "start_date")
			},
			wantErr:    true,
			wantFields: FieldErrors{"name": {msgRequired}, "start_date": {msgRequired}},
		},
		{
			name: "blank and null fields",
			mutate: func(raw map[string]any) {
				raw["sell_mode"] = "   "
				raw["external_id"] = nil
			},
			wantErr:    true,
			wantFields: FieldErrors{"sell_mode": {msgBlank}, "external_id": {msgNull}},
		},
		{
			name: "too long",
			mutate: func(raw map[string]any) {
				raw["sell_mode"] = strings.Repeat("x", 51)
				raw["name"] = strings.Repeat("x", 256)
			},
			wantErr: true,
			wantFields: FieldErrors{
				"sell_mode": {"Ensure this field has no more than 50 characters."},
				"name":      {"Ensure this field has no more than 255 characters."},
			},
		},
		{
			name: "not a string",
			mutate: func(raw map[string]any) {
				raw["name"] = map[string]any{"a": 1}
			},
			wantErr:    true,
			wantFields: FieldErrors{"name": {msgNotString}},
		},
		{
			name: "malformed dates",
			mutate: func(raw map[string]any) {
				raw["start_date"] = "2021-06-30T21:00:00.123Z"
				raw["end_date"] = "2021-06-30T22:00:00+02:00"
			},
			wantErr:    true,
			wantFields: FieldErrors{"start_date": {msgDateFormat}, "end_date": {msgDateFormat}},
		},
		{
			name: "date not a string",
			mutate: func(raw map[string]any) {
				raw["end_date"] = float64(1625090400)
			},
			wantErr:    true,
			wantFields: FieldErrors{"end_date": {msgDateFormat}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := validRaw()
			tt.mutate(raw)

			got, err := ParseEvent(raw)
			if tt.wantErr {
				require.Error(t, err)

				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantFields, verr.Fields)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantEvent, got)
			}
		})
	}
}

func TestParseEvents(t *testing.T) {
	t.Parallel()

	t.Run("all valid", func(t *testing.T) {
		t.Parallel()

		second := validRaw()
		second["external_id"] = "292"

		events, err := ParseEvents([]map[string]any{validRaw(), second})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "291", events[0].ExternalId)
		assert.Equal(t, "292", events[1].ExternalId)
	})

	t.Run("one malformed rejects the batch", func(t *testing.T) {
		t.Parallel()

		malformed := validRaw()
		malformed["start_date"] = "30/06/2021"

		events, err := ParseEvents([]map[string]any{validRaw(), malformed, validRaw()})
		require.Error(t, err)
		assert.Nil(t, events)

		var berr *BulkValidationError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, []FieldErrors{{}, {"start_date": {msgDateFormat}}, {}}, berr.Items)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		events, err := ParseEvents(nil)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestParseEventDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "2022-01-01T00:00:00Z", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{value: "2022-01-01T10:20:30", want: time.Date(2022, 1, 1, 10, 20, 30, 0, time.UTC)},
		{value: "2022-01-01T00:00:00.5Z", wantErr: true},
		{value: "2022-01-01T00:00:00,5Z", wantErr: true},
		{value: "2022-01-01T00:00:00,123", wantErr: true},
		{value: "2022-01-01T00:00:00+01:00", wantErr: true},
		{value: "2022-01-01", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()

			got, err := ParseEventDate(tt.value)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.True(t, tt.want.Equal(got))
			}
		})
	}
}

func TestParseISODateTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "2022-01-01T00:00:00Z", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{value: "2022-01-01T01:00:00+01:00", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{value: "2022-01-01T00:00:00.250Z", want: time.Date(2022, 1, 1, 0, 0, 0, 250000000, time.UTC)},
		{value: "2022-01-01 00:00:00", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{value: "2022-01-01T00:00", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{value: "yesterday", wantErr: true},
		{value: "2022-13-01T00:00:00Z", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()

			got, err := ParseISODateTime(tt.value)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.True(t, tt.want.Equal(got), "got %s", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestParseEventPatch(t *testing.T) {
	t.Parallel()

	base := &Event{
		Id:         7,
		ExternalId: "291",
		Name:       "Camela en concierto",
		StartDate:  time.Date(2021, 6, 30, 21, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2021, 6, 30, 22, 0, 0, 0, time.UTC),
		SellMode:   "online",
	}

	tests := []struct {
		name       string
		raw        map[string]any
		wantFields FieldErrors
		wantEvent  *Event
	}{
		{
			name:      "empty patch keeps the event",
			raw:       map[string]any{},
			wantEvent: base,
		},
		{
			name: "present fields replace the stored ones",
			raw:  map[string]any{"name": "Renamed", "end_date": "2021-07-01T00:00:00"},
			wantEvent: &Event{
				Id:         7,
				ExternalId: "291",
				Name:       "Renamed",
				StartDate:  time.Date(2021, 6, 30, 21, 0, 0, 0, time.UTC),
				EndDate:    time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
				SellMode:   "online",
			},
		},
		{
			name:       "present fields are validated",
			raw:        map[string]any{"sell_mode": "", "start_date": nil},
			wantFields: FieldErrors{"sell_mode": {msgBlank}, "start_date": {msgNull}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseEventPatch(tt.raw, base)
			if tt.wantFields != nil {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantFields, verr.Fields)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantEvent, got)
			assert.NotSame(t, base, got)
		})
	}
}

func TestParseRawDateTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   any
		want    time.Time
		wantErr bool
	}{
		{name: "utc", value: "2022-01-01T00:00:00Z", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "offset", value: "2022-01-01T02:00:00+02:00", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "naive", value: "2022-01-01 10:30:00", want: time.Date(2022, 1, 1, 10, 30, 0, 0, time.UTC)},
		{name: "bare date", value: "2022-01-01", want: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "infinity", value: "infinity", wantErr: true},
		{name: "negative infinity", value: "-infinity", wantErr: true},
		{name: "now", value: "now", wantErr: true},
		{name: "epoch", value: "epoch", wantErr: true},
		{name: "number", value: json.Number("1640995200"), wantErr: true},
		{name: "bool", value: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRawDateTime(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestEventDatesRoundTrip(t *testing.T) {
	t.Parallel()

	event, err := ParseEvent(validRaw())
	require.NoError(t, err)

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "2021-06-30T21:00:00Z", decoded["start_date"])
	assert.Equal(t, "2021-06-30T22:00:00Z", decoded["end_date"])
	assert.Equal(t, "291", decoded["external_id"])
	assert.Equal(t, "online", decoded["sell_mode"])

	startDate, err := ParseISODateTime(decoded["start_date"].(string))
	require.NoError(t, err)
	assert.True(t, event.StartDate.Equal(startDate))

	endDate, err := ParseEventDate(decoded["end_date"].(string))
	require.NoError(t, err)
	assert.True(t, event.EndDate.Equal(endDate))
}

func TestRawEventFields(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id":          float64(3),
		"external_id": "1",
		"name":        nil,
		"start_date":  "not a date",
		"unknown":     true,
	}

	assert.Equal(t, map[string]any{
		"external_id": "1",
		"name":        nil,
		"start_date":  "not a date",
	}, RawEventFields(raw))
}

func TestRawText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  any
		want   string
		wantOk bool
	}{
		{name: "nil", value: nil, want: "", wantOk: false},
		{name: "string", value: "abc", want: "abc", wantOk: true},
		{name: "integral float", value: float64(291), want: "291", wantOk: true},
		{name: "float", value: 1.5, want: "1.5", wantOk: true},
		{name: "json number", value: json.Number("42"), want: "42", wantOk: true},
		{name: "bool", value: true, want: "true", wantOk: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := RawText(tt.value)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}
