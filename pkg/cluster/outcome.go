package cluster

import (
	"github.com/meta-node-blockchain/benor/pkg/benor"
)

// Outcome summarises the states of a finished run.
type Outcome struct {
	Value    benor.Value
	Decided  int
	Live     int
	Agreed   bool
	MaxRound int
}

// Terminated is true when every live node decided and they agree.
func (o Outcome) Terminated() bool {
	return o.Agreed && o.Decided == o.Live
}

// Summarize folds node states into an Outcome. Faulty nodes are skipped.
func Summarize(states []benor.NodeState) Outcome {
	out := Outcome{Value: benor.Undefined, Agreed: true}
	for _, s := range states {
		if s.Decided == nil {
			continue
		}
		out.Live++
		if r := s.RoundOr(0); r > out.MaxRound {
			out.MaxRound = r
		}
		if !s.IsDecided() {
			continue
		}
		out.Decided++
		if out.Value == benor.Undefined {
			out.Value = s.Value
		} else if out.Value != s.Value {
			out.Agreed = false
		}
	}
	return out
}
