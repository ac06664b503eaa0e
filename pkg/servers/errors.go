package servers

import (
	"errors"
	"fmt"
)

var (
	ErrStart = errors.New("server failed to start")
	ErrStop  = errors.New("server failed to stop")
)

// ErrServerFailedToStart matches ErrStart and the underlying cause under errors.Is.
func ErrServerFailedToStart(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrStart, err)
}

func ErrServerFailedToStop(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrStop, err)
}
