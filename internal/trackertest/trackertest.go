// Package trackertest provides an in-memory tracker store seeded with a
// small fixture for tests.
package trackertest

import (
	"bytes"
	"context"
	_ "embed"
	"testing"

	"github.com/caffix/pipesh/tracker"
)

// Fixture is the YAML fixture loaded by New: three users and five issues
// across the WEB and API projects.
//
//go:embed fixture.yaml
var Fixture []byte

// New returns an in-memory store holding Fixture. The store is closed when
// the test finishes.
func New(t testing.TB) *tracker.Store {
	t.Helper()

	s, err := tracker.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to open the store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Import(context.Background(), bytes.NewReader(Fixture)); err != nil {
		t.Fatalf("Failed to import the fixture: %v", err)
	}
	return s
}
