package benor

// Status is the answer to a status query.
type Status string

const (
	StatusLive   Status = "live"
	StatusFaulty Status = "faulty"
)

// NodeState is the externally visible state of a node. Decided and Round are
// nil for a faulty node.
type NodeState struct {
	Killed  bool  `json:"killed"`
	Value   Value `json:"x"`
	Decided *bool `json:"decided"`
	Round   *int  `json:"k"`
}

// IsDecided is false for faulty nodes.
func (s NodeState) IsDecided() bool {
	return s.Decided != nil && *s.Decided
}

// RoundOr returns the reported round, or def when it is undefined.
func (s NodeState) RoundOr(def int) int {
	if s.Round == nil {
		return def
	}
	return *s.Round
}

// Snapshot is the raw internal state handed to a Recorder. Unlike NodeState it
// carries the live round counter.
type Snapshot struct {
	Session string
	NodeID  int
	Round   int
	Value   Value
	Decided bool
	Killed  bool
	Faulty  bool
	Event   string
}

// Recorder persists snapshots. It is called with the node lock held, so
// implementations must not call back into the node.
type Recorder interface {
	Record(s Snapshot) error
}

const (
	EventStarted  = "started"
	EventRound    = "round"
	EventDecided  = "decided"
	EventStopped  = "stopped"
	EventProposal = "proposal"
)
