package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict signals a canonical-id race: the fingerprint now maps to a
	// different canonical id than the caller resolved. Retried once with a
	// fresh lookup.
	ErrConflict = errors.New("store: conflict")
	// ErrUnavailable signals the store itself is unusable; the run aborts.
	ErrUnavailable = errors.New("store: unavailable")
)

// wrapUnavailable folds driver-level failures into the persistence taxonomy
// while keeping the original error in the chain.
func wrapUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func isConstraintViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text;
	// there is no exported error type to match on.
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "UNIQUE")
}
