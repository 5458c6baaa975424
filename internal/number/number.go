// Package number issues short human-readable order and invoice numbers.
package number

import (
	"encoding/hex"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
)

// Length is the number of hex characters of a generated number.
const Length = 7

// Generator issues random hex numbers. Numbers already issued by the
// generator are redrawn; the bloom filter may reject a fresh value as a
// false positive, which only costs another draw.
type Generator struct {
	mu     sync.Mutex
	seen   *bloom.BloomFilter
	random func() uuid.UUID
}

// NewGenerator creates a Generator sized for about expected numbers.
func NewGenerator(expected uint) *Generator {
	if expected == 0 {
		expected = 100_000
	}
	return &Generator{
		seen:   bloom.NewWithEstimates(expected, 0.001),
		random: uuid.New,
	}
}

// Next returns a fresh number.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		id := g.random()
		n := hex.EncodeToString(id[:])[:Length]
		if !g.seen.TestOrAddString(n) {
			return n
		}
	}
}

// Seen reports whether n may have been issued.
func (g *Generator) Seen(n string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen.TestString(n)
}

// Mark records numbers issued elsewhere, e.g. loaded from storage.
func (g *Generator) Mark(numbers ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range numbers {
		g.seen.AddString(n)
	}
}
