// Package slug allocates public wish identifiers.
package slug

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/hpungsan/wishaday/internal/errors"
)

// Alphabet excludes characters that are easy to misread: 0 O o 1 l I i.
const Alphabet = "23456789abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

// Lengths are tried in order, one per attempt.
var Lengths = []int{8, 9, 10}

// DefaultMaxAttempts bounds collision retries for one allocation.
const DefaultMaxAttempts = 3

// Generate returns a random slug of the given length drawn from Alphabet.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("slug length must be positive, got %d", length)
	}

	size := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Valid reports whether s has an allocatable length and only Alphabet characters.
func Valid(s string) bool {
	if len(s) < Lengths[0] || len(s) > Lengths[len(Lengths)-1] {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlphabet(s[i]) {
			return false
		}
	}
	return true
}

func isAlphabet(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}

// ExistsFunc reports whether a slug is held by any persisted wish.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Allocator produces slugs not currently held in the store. It only checks;
// the caller commits the slug together with the wish row and relies on the
// store's uniqueness constraint to close the check-then-insert race.
type Allocator struct {
	exists      ExistsFunc
	maxAttempts int
	generate    func(length int) (string, error)
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithGenerator replaces the random source (tests use it to force collisions).
func WithGenerator(gen func(length int) (string, error)) Option {
	return func(a *Allocator) {
		if gen != nil {
			a.generate = gen
		}
	}
}

// NewAllocator creates an Allocator backed by exists.
func NewAllocator(exists ExistsFunc, opts ...Option) *Allocator {
	a := &Allocator{
		exists:      exists,
		maxAttempts: DefaultMaxAttempts,
		generate:    Generate,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns a slug that no persisted wish holds at the time of the
// check. After maxAttempts collisions it returns ALLOCATION_EXHAUSTED.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate, err := a.generate(lengthFor(attempt))
		if err != nil {
			return "", errors.NewInternal(err)
		}

		taken, err := a.exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errors.NewAllocationExhausted(a.maxAttempts)
}

func lengthFor(attempt int) int {
	if attempt < len(Lengths) {
		return Lengths[attempt]
	}
	return Lengths[len(Lengths)-1]
}
