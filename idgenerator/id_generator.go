// Package idgenerator hands out session identifiers.
package idgenerator

import "sync/atomic"

// IdGenerator produces monotonically increasing uint32 ids, safe for
// concurrent use. Ids wrap around after math.MaxUint32.
type IdGenerator struct {
	id atomic.Uint32
}

// NewIdGenerator creates an IdGenerator whose first Next returns
// startValue+1. Starting from 0 keeps 0 free to mean "no session".
//
// Parameters:
//   - startValue: The value the counter starts from
//
// Returns:
//   - A new IdGenerator
func NewIdGenerator(startValue uint32) *IdGenerator {
	gen := &IdGenerator{}
	gen.id.Store(startValue)
	return gen
}

// Next returns the next id.
func (g *IdGenerator) Next() uint32 {
	return g.id.Add(1)
}

// Last returns the most recently issued id, or the start value if Next has
// not been called.
func (g *IdGenerator) Last() uint32 {
	return g.id.Load()
}
