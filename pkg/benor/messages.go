package benor

import (
	"errors"
	"fmt"
)

// Protocol steps within a round.
const (
	StepPropose = 1
	StepDecide  = 2
)

var ErrInvalidMessage = errors.New("invalid round message")

// Message is the only protocol message: a value tagged with its round and step.
type Message struct {
	Value Value `json:"x"`
	Round int   `json:"k"`
	Step  int   `json:"step"`
}

func (m Message) Validate() error {
	if m.Step != StepPropose && m.Step != StepDecide {
		return fmt.Errorf("%w: step %d", ErrInvalidMessage, m.Step)
	}
	if m.Round < 1 {
		return fmt.Errorf("%w: round %d", ErrInvalidMessage, m.Round)
	}
	return nil
}

func (m Message) String() string {
	return fmt.Sprintf("{x=%s k=%d step=%d}", m.Value, m.Round, m.Step)
}
