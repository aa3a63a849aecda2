// Package teamcode generates the short, shareable codes students use to
// join a team.
package teamcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Length of every generated code.
const Length = 6

// Alphabet holds the characters a code is drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultMaxAttempts caps the generate-check loop.
const DefaultMaxAttempts = 1000

// ErrExhausted is returned when no unused code was found within the attempt cap.
var ErrExhausted = errors.New("could not generate an unused team code")

// Source draws a candidate code.
type Source func() (string, error)

// Random draws a code from crypto/rand.
func Random() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("crypto/rand: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Valid reports whether s has the shape of a generated code.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// Generator draws codes until one is unused.
type Generator struct {
	Source      Source
	MaxAttempts int
}

// New returns a Generator backed by crypto/rand.
func New(maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{Source: Random, MaxAttempts: maxAttempts}
}

// Generate returns the first drawn code for which exists reports false.
// The check is advisory; callers must still treat a duplicate key on
// insert as a collision and call Generate again.
func (g *Generator) Generate(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < g.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Source()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhausted
}
