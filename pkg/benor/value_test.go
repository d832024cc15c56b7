package benor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSON(t *testing.T) {
	cases := map[Value]string{Zero: "0", One: "1", Unknown: `"?"`, Undefined: "null"}
	for v, want := range cases {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
}

func TestValueUnmarshalAcceptsAnything(t *testing.T) {
	cases := map[string]Value{
		"0":       Zero,
		"1":       One,
		`"?"`:     Unknown,
		"null":    Undefined,
		`"0"`:     Unknown,
		"7":       Unknown,
		"true":    Unknown,
		`{"a":1}`: Unknown,
	}
	for raw, want := range cases {
		var v Value
		require.NoError(t, json.Unmarshal([]byte(raw), &v), raw)
		assert.Equal(t, want, v, raw)
	}
}

func TestMessageJSONShape(t *testing.T) {
	b, err := json.Marshal(Message{Value: Unknown, Round: 3, Step: StepDecide})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":"?","k":3,"step":2}`, string(b))

	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"x":1,"k":2,"step":1}`), &m))
	assert.Equal(t, Message{Value: One, Round: 2, Step: StepPropose}, m)
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, Message{Value: One, Round: 1, Step: 1}.Validate())
	assert.ErrorIs(t, Message{Value: One, Round: 1, Step: 3}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{Value: One, Round: 0, Step: 1}.Validate(), ErrInvalidMessage)
}

func TestNodeStateJSON(t *testing.T) {
	decided, round := true, 2
	b, err := json.Marshal(NodeState{Value: One, Decided: &decided, Round: &round})
	require.NoError(t, err)
	assert.JSONEq(t, `{"killed":false,"x":1,"decided":true,"k":2}`, string(b))

	b, err = json.Marshal(NodeState{Killed: true, Value: Undefined})
	require.NoError(t, err)
	assert.JSONEq(t, `{"killed":true,"x":null,"decided":null,"k":null}`, string(b))
}
