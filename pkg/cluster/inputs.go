package cluster

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/meta-node-blockchain/benor/pkg/benor"
)

// ParseInputs reads a comma separated list of 0/1 initial values, one per
// node. "random" draws them from rnd instead.
func ParseInputs(s string, n int, rnd *rand.Rand) ([]benor.Value, error) {
	if s == "random" {
		out := make([]benor.Value, n)
		for i := range out {
			out[i] = benor.Value(rnd.Intn(2))
		}
		return out, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: %d values for %d nodes", ErrInputs, len(parts), n)
	}
	out := make([]benor.Value, n)
	for i, p := range parts {
		switch strings.TrimSpace(p) {
		case "0":
			out[i] = benor.Zero
		case "1":
			out[i] = benor.One
		default:
			return nil, fmt.Errorf("%w: %q is not 0 or 1", ErrInputs, p)
		}
	}
	return out, nil
}

// LastFaulty marks the last count indexes of an n-node network as faulty.
func LastFaulty(count, n int) map[int]bool {
	out := make(map[int]bool, count)
	for i := n - count; i < n; i++ {
		if i >= 0 {
			out[i] = true
		}
	}
	return out
}
