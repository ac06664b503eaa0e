package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrDuplicateExternalId = errors.New("event with this external_id already exists")
)

type Error struct {
	Message string   `json:"message,omitempty"`
	Err     []string `json:"err,omitempty"`
	Details any      `json:"details,omitempty"`
}

func NewError(message string, errs ...error) *Error {
	e := &Error{
		Message: message,
		Err: func() []string {
			var msgs []string

			for _, err := range errs {
				if err != nil {
					msgs = append(msgs, err.Error())
				}
			}

			return msgs
		}(),
	}

	// Field level details are lifted so clients get the map and not a flattened string.
	for _, err := range errs {
		var verr *ValidationError
		if errors.As(err, &verr) {
			e.Details = verr.Fields
			break
		}

		var berr *BulkValidationError
		if errors.As(err, &berr) {
			e.Details = berr.Items
			break
		}
	}

	return e
}

func (e *Error) Error() string {
	//nolint:errchkjson
	data, _ := json.Marshal(e)
	return string(data)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	if len(e.Err) == 0 {
		return nil
	}

	errs := make([]error, len(e.Err))
	for i, err := range e.Err {
		errs[i] = fmt.Errorf("%s", err)
	}

	return errors.Join(errs...)
}

func (e *Error) Messages() []string {
	return e.Err
}

// FieldErrors maps a field name to the messages describing why it was rejected.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field string, message string) {
	f[field] = append(f[field], message)
}

func (f FieldErrors) String() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(f[field], " "))
	}

	return strings.Join(parts, "; ")
}

type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Fields.String()
}

// BulkValidationError holds one FieldErrors per submitted element, empty for the valid ones.
type BulkValidationError struct {
	Items []FieldErrors
}

func (e *BulkValidationError) Error() string {
	var parts []string

	for i, item := range e.Items {
		if len(item) > 0 {
			parts = append(parts, fmt.Sprintf("[%d] %s", i, item.String()))
		}
	}

	return "invalid events: " + strings.Join(parts, ", ")
}
