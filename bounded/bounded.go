// Package bounded keeps integer fields inside a safe range.
//
// Writes clamp silently. Reads treat an out-of-range or mistyped value as
// corruption of that one field: it is logged, overwritten with the field's
// default, and the default is returned. The rest of the stored data is left
// alone.
package bounded

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stevemurr/localstate/outcome"
	"github.com/stevemurr/localstate/store"
)

// IntStore is the part of store.Store a bounded field reads and writes.
type IntStore interface {
	GetInt(ctx context.Context, key string) (int64, bool, error)
	SetInt(ctx context.Context, key string, v int64) error
}

// Field describes one bounded integer.
type Field struct {
	Key     string
	Min     int64
	Max     int64
	Default int64
}

// Contains reports whether v is inside [Min, Max].
func (f Field) Contains(v int64) bool { return v >= f.Min && v <= f.Max }

// Clamp limits v to [min, max].
func Clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// CorruptionError describes a field that failed its bounds or type check.
type CorruptionError struct {
	Key    string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("field %q corrupt: %s", e.Key, e.Reason)
}

func (e *CorruptionError) Is(target error) bool { return target == outcome.ErrFieldCorruption }

// ReadInt returns the stored value of f, or f.Default when it is absent,
// corrupt or unreadable. Corrupt values are overwritten with the default.
func ReadInt(ctx context.Context, s IntStore, f Field, log *zap.Logger) (int64, outcome.Outcome) {
	if log == nil {
		log = zap.NewNop()
	}
	v, ok, err := s.GetInt(ctx, f.Key)
	switch {
	case errors.Is(err, store.ErrWrongType):
		return repair(ctx, s, f, &CorruptionError{Key: f.Key, Reason: "not an integer"}, log)
	case err != nil:
		err = fmt.Errorf("%w: read %s: %w", outcome.ErrIO, f.Key, err)
		log.Error("read bounded field", zap.String("key", f.Key), zap.Error(err))
		return f.Default, outcome.Failure(err)
	case !ok:
		return f.Default, outcome.Default(nil)
	case !f.Contains(v):
		return repair(ctx, s, f, &CorruptionError{
			Key:    f.Key,
			Reason: fmt.Sprintf("%d outside [%d, %d]", v, f.Min, f.Max),
		}, log)
	}
	return v, outcome.Success()
}

func repair(ctx context.Context, s IntStore, f Field, cause *CorruptionError, log *zap.Logger) (int64, outcome.Outcome) {
	log.Warn("resetting corrupt field", zap.String("key", f.Key), zap.Int64("default", f.Default), zap.Error(cause))
	if err := s.SetInt(ctx, f.Key, f.Default); err != nil {
		log.Error("reset corrupt field", zap.String("key", f.Key), zap.Error(err))
	}
	return f.Default, outcome.Default(cause)
}

// WriteInt clamps v into range, stores it, and returns the stored value.
func WriteInt(ctx context.Context, s IntStore, f Field, v int64, log *zap.Logger) (int64, outcome.Outcome) {
	if log == nil {
		log = zap.NewNop()
	}
	clamped := Clamp(v, f.Min, f.Max)
	if clamped != v {
		log.Debug("clamped bounded field", zap.String("key", f.Key), zap.Int64("value", v), zap.Int64("stored", clamped))
	}
	if err := s.SetInt(ctx, f.Key, clamped); err != nil {
		err = fmt.Errorf("%w: write %s: %w", outcome.ErrIO, f.Key, err)
		log.Error("write bounded field", zap.String("key", f.Key), zap.Error(err))
		return clamped, outcome.Failure(err)
	}
	return clamped, outcome.Success()
}
