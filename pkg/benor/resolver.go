package benor

import (
	"errors"
	"math/rand"
	"sync"
)

var ErrMissingThreshold = errors.New("resolver threshold parameter missing")

// Coin supplies the unbiased tie-break used when a round carries no votes.
type Coin interface {
	Flip() Value
}

// RandomCoin is a per-node coin backed by its own generator.
type RandomCoin struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomCoin(seed int64) *RandomCoin {
	return &RandomCoin{rng: rand.New(rand.NewSource(seed))}
}

func (c *RandomCoin) Flip() Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rng.Intn(2) == 0 {
		return Zero
	}
	return One
}

// FixedCoin always lands on the same side.
type FixedCoin Value

func (c FixedCoin) Flip() Value { return Value(c) }

// countVotes counts 0 and 1 votes; everything else abstains.
func countVotes(values []Value) (c0, c1 int) {
	for _, v := range values {
		switch v {
		case Zero:
			c0++
		case One:
			c1++
		}
	}
	return c0, c1
}

// ResolveStep1 refines a proposal: a value is kept only when a strict majority
// of all n nodes, not just of the responders, holds it.
func ResolveStep1(values []Value, n int) Value {
	if n <= 0 {
		panic(ErrMissingThreshold)
	}
	c0, c1 := countVotes(values)
	switch {
	case 2*c0 > n:
		return Zero
	case 2*c1 > n:
		return One
	}
	return Unknown
}

// ResolveStep2 returns the value for the next round and whether it is decided.
// More than f votes for v cannot all come from faulty nodes, so v is final.
// Otherwise the plurality is adopted, and a tie or total abstention flips the coin.
func ResolveStep2(values []Value, f int, coin Coin) (Value, bool) {
	if f < 0 || coin == nil {
		panic(ErrMissingThreshold)
	}
	c0, c1 := countVotes(values)
	switch {
	case c0 > f:
		return Zero, true
	case c1 > f:
		return One, true
	case c0 > c1:
		return Zero, false
	case c1 > c0:
		return One, false
	}
	return coin.Flip(), false
}
