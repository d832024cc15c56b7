package benor

import (
	"github.com/elliotchance/orderedmap/v2"
)

// roundBuffer holds what one round received for each step.
type roundBuffer struct {
	step1 []Value
	step2 []Value

	// proposed and consumed mark step 1 and step 2 as resolved
	proposed bool
	consumed bool
}

// roundBuffers keeps buffers keyed by round in first-seen order.
type roundBuffers struct {
	rounds *orderedmap.OrderedMap[int, *roundBuffer]
}

func newRoundBuffers() *roundBuffers {
	return &roundBuffers{rounds: orderedmap.NewOrderedMap[int, *roundBuffer]()}
}

func (b *roundBuffers) get(round int) *roundBuffer {
	if rb, ok := b.rounds.Get(round); ok {
		return rb
	}
	rb := &roundBuffer{}
	b.rounds.Set(round, rb)
	return rb
}

func (b *roundBuffers) lookup(round int) (*roundBuffer, bool) {
	return b.rounds.Get(round)
}

// retireBelow drops every round lower than floor and returns how many went.
func (b *roundBuffers) retireBelow(floor int) int {
	var old []int
	for el := b.rounds.Front(); el != nil; el = el.Next() {
		if el.Key < floor {
			old = append(old, el.Key)
		}
	}
	for _, round := range old {
		b.rounds.Delete(round)
	}
	return len(old)
}

func (b *roundBuffers) len() int {
	return b.rounds.Len()
}
