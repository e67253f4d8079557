// Package storage loads seed pantries that pre-populate a session before the first turn.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"aichef/kitchen"
)

// SeedState is a source of seed pantry bytes (YAML or JSON in the extraction payload shape).
type SeedState interface {
	Load(ctx context.Context) ([]byte, error)
}

// Seed loads the seed from src and merges it into the session. It returns the number of pantry items after merging.
func Seed(ctx context.Context, src SeedState, s *kitchen.Session) (int, error) {
	b, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("read seed pantry: %w", err)
	}

	rec, err := kitchen.ParseSeed(b)
	if err != nil {
		return 0, err
	}

	s.Merge(rec)
	slog.Info("STORAGE: Seed pantry merged",
		"session_id", s.ID(),
		"items", len(rec.Items),
		"constraints", len(rec.Constraints),
		"pantry_size", len(s.Pantry()))
	return len(s.Pantry()), nil
}

// TestSeedState is a simple in-memory implementation for testing
type TestSeedState struct {
	data []byte
	err  error
}

func NewTestSeedState(data []byte) *TestSeedState {
	return &TestSeedState{data: data}
}

func NewTestSeedStateWithError() *TestSeedState {
	return &TestSeedState{err: errors.New("not found")}
}

func (t *TestSeedState) Load(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.data, nil
}
