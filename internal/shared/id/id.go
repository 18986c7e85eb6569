// Package id provides centralized ID generation for the extension host.
//
// Dialog correlation tokens and surface identifiers are ULIDs with
// type-specific prefixes (dlg_*, srf_*), which keeps them lexicographically
// sortable and makes logs readable. Generation is safe for concurrent use.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID correlates a bridge dialog request with its response. Unique
// for the lifetime of the process.
type RequestID string

// SurfaceID identifies one connected UI surface (a host window or a guest
// frame).
type SurfaceID string

const (
	requestPrefix = "dlg"
	surfacePrefix = "srf"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new dialog correlation id.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(requestPrefix))
}

// NewSurfaceID generates a new surface id.
func NewSurfaceID() SurfaceID {
	return SurfaceID(Default().GenerateWithPrefix(surfacePrefix))
}
