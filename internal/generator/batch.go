package generator

import (
	"fmt"
	"math/rand/v2"
)

const (
	minAttempts        = 1024
	attemptsPerAddress = 64
)

// Generator collects distinct random addresses from a list of CIDR blocks.
// A Generator is meant for a single goroutine; build one per batch.
type Generator struct {
	rng         *rand.Rand
	maxAttempts int
}

type Option func(*Generator)

// WithRand sets the random source, mostly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

// WithMaxAttempts bounds how many samples Generate may draw. Zero or less
// selects the default of max(1024, 64*count).
func WithMaxAttempts(attempts int) Option {
	return func(g *Generator) {
		g.maxAttempts = attempts
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = newRand()
	}
	return g
}

// Generate returns count distinct addresses in the order they were first drawn.
// Each draw picks a block uniformly and samples one usable host from it.
func (g *Generator) Generate(count int, cidrs []string) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if len(cidrs) == 0 {
		return nil, ErrNoAddressSource
	}

	blocks := make([]Block, 0, len(cidrs))
	for _, cidr := range cidrs {
		block, err := ParseBlock(cidr)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	if capacity := Capacity(blocks); capacity < uint64(count) {
		return nil, fmt.Errorf("%w: requested %d, ranges hold %d", ErrInsufficientAddressSpace, count, capacity)
	}

	maxAttempts := g.maxAttempts
	if maxAttempts <= 0 {
		maxAttempts = max(minAttempts, attemptsPerAddress*count)
	}

	seen := make(map[string]struct{}, count)
	addresses := make([]string, 0, count)

	for attempt := 0; len(addresses) < count; attempt++ {
		if attempt >= maxAttempts {
			return nil, fmt.Errorf("%w: found %d of %d unique addresses after %d attempts",
				ErrInsufficientAddressSpace, len(addresses), count, attempt)
		}

		ip := blocks[g.rng.IntN(len(blocks))].Sample(g.rng)
		if _, exists := seen[ip]; exists {
			continue
		}
		seen[ip] = struct{}{}
		addresses = append(addresses, ip)
	}

	return addresses, nil
}
