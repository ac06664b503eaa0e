package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	msgRequired      = "This field is required."
	msgNull          = "This field may not be null."
	msgBlank         = "This field may not be blank."
	msgNotString     = "Not a valid string."
	msgDateFormat    = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm:ssZ, YYYY-MM-DDThh:mm:ss."
	msgISODateFormat = "Enter a valid date/time."
	msgUnique        = "event with this external id already exists."
)

// Accepted layouts for start_date and end_date on input. Both are read as UTC.
var eventDateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// Layouts accepted for range bounds given as query parameters.
var isoDateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// EventColumns are the writable event attributes, in column order.
var EventColumns = []string{"external_id", "name", "start_date", "end_date", "sell_mode"}

type eventPayload struct {
	ExternalId string `json:"external_id" validate:"required,max=255"`
	Name       string `json:"name" validate:"required,max=255"`
	SellMode   string `json:"sell_mode" validate:"required,max=50"`
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}()

// ParseEvent turns an untyped JSON object into an Event. Every rejected field is reported
// in the returned *ValidationError, not only the first one.
func ParseEvent(raw map[string]any) (*Event, error) {
	return parseEvent(raw, nil)
}

// ParseEventPatch applies the fields present in raw over base. Absent fields keep the
// values of base and are not validated again.
func ParseEventPatch(raw map[string]any, base *Event) (*Event, error) {
	return parseEvent(raw, base)
}

func parseEvent(raw map[string]any, base *Event) (*Event, error) {
	fields := FieldErrors{}

	var event Event
	if base != nil {
		event = *base
	}

	apply := func(name string) bool {
		_, ok := raw[name]
		return ok || base == nil
	}

	if apply("external_id") {
		event.ExternalId = stringField(raw, "external_id", fields)
	}

	if apply("name") {
		event.Name = stringField(raw, "name", fields)
	}

	if apply("sell_mode") {
		event.SellMode = stringField(raw, "sell_mode", fields)
	}

	if apply("start_date") {
		event.StartDate = dateField(raw, "start_date", fields)
	}

	if apply("end_date") {
		event.EndDate = dateField(raw, "end_date", fields)
	}

	err := validate.Struct(eventPayload{
		ExternalId: event.ExternalId,
		Name:       event.Name,
		SellMode:   event.SellMode,
	})

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if _, reported := fields[fe.Field()]; reported {
				continue
			}

			fields.Add(fe.Field(), fieldErrorMessage(fe))
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return &event, nil
}

// ParseEvents validates every element, failing the whole batch if any element is rejected.
func ParseEvents(raws []map[string]any) ([]*Event, error) {
	events := make([]*Event, 0, len(raws))
	items := make([]FieldErrors, len(raws))
	failed := false

	for i, raw := range raws {
		event, err := ParseEvent(raw)
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return nil, err
			}

			items[i] = verr.Fields
			failed = true

			continue
		}

		items[i] = FieldErrors{}
		events = append(events, event)
	}

	if failed {
		return nil, &BulkValidationError{Items: items}
	}

	return events, nil
}

// ParseEventDate parses start_date/end_date input values.
func ParseEventDate(value string) (time.Time, error) {
	if strings.ContainsAny(value, ".,") {
		return time.Time{}, fmt.Errorf("invalid event date %q", value)
	}

	for _, layout := range eventDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid event date %q", value)
}

// ParseISODateTime parses an ISO 8601 date-time. Values without an offset are read as UTC.
func ParseISODateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range isoDateTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid ISO 8601 date-time %q", value)
}

// ParseRawDateTime reads a date value that did not go through ParseEvent: an ISO 8601
// date-time, or a bare date taken as midnight UTC.
func ParseRawDateTime(value any) (time.Time, error) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date-time %v", value)
	}

	t, err := ParseISODateTime(s)
	if err == nil {
		return t, nil
	}

	t, dateErr := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if dateErr == nil {
		return t, nil
	}

	return time.Time{}, err
}

// RawEventFields keeps the writable attributes present in raw, untouched.
func RawEventFields(raw map[string]any) map[string]any {
	fields := make(map[string]any, len(EventColumns))

	for _, column := range EventColumns {
		if value, ok := raw[column]; ok {
			fields[column] = value
		}
	}

	return fields
}

// RawText renders a raw JSON value the way it is handed to the database.
func RawText(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func stringField(raw map[string]any, name string, fields FieldErrors) string {
	value, ok := raw[name]
	if !ok {
		fields.Add(name, msgRequired)
		return ""
	}

	switch v := value.(type) {
	case nil:
		fields.Add(name, msgNull)
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64, json.Number:
		text, _ := RawText(v)
		return text
	default:
		fields.Add(name, msgNotString)
		return ""
	}
}

func dateField(raw map[string]any, name string, fields FieldErrors) time.Time {
	value, ok := raw[name]
	if !ok {
		fields.Add(name, msgRequired)
		return time.Time{}
	}

	if value == nil {
		fields.Add(name, msgNull)
		return time.Time{}
	}

	s, ok := value.(string)
	if !ok {
		fields.Add(name, msgDateFormat)
		return time.Time{}
	}

	t, err := ParseEventDate(s)
	if err != nil {
		fields.Add(name, msgDateFormat)
		return time.Time{}
	}

	return t
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgBlank
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
	}
}
