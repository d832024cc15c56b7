// Package codec encodes round messages for the HTTP transport. JSON is the
// default; the protobuf wire format is a compact alternative with the layout
//
//	message Message {
//	  sint32 x    = 1; // -1 undefined, 2 unknown
//	  uint64 k    = 2;
//	  uint32 step = 3;
//	}
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/config"
)

const (
	ContentTypeJSON  = "application/json"
	ContentTypeProto = "application/x-protobuf"

	fieldValue protowire.Number = 1
	fieldRound protowire.Number = 2
	fieldStep  protowire.Number = 3
)

var ErrMalformed = errors.New("malformed message")

// Codec turns messages into request bodies and back.
type Codec interface {
	ContentType() string
	Marshal(msg benor.Message) ([]byte, error)
	Unmarshal(data []byte) (benor.Message, error)
}

// ForWireFormat picks the codec for a configured wire format.
func ForWireFormat(format string) (Codec, error) {
	switch format {
	case config.WireFormatJSON, "":
		return JSON{}, nil
	case config.WireFormatProto:
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("unknown wire format %q", format)
	}
}

// ForContentType picks the codec for an incoming request. Anything that is not
// protobuf is read as JSON.
func ForContentType(contentType string) Codec {
	if contentType == ContentTypeProto {
		return Proto{}
	}
	return JSON{}
}

type JSON struct{}

func (JSON) ContentType() string { return ContentTypeJSON }

func (JSON) Marshal(msg benor.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal requires the round and step fields. Any value payload is
// accepted; unrecognised ones read as Unknown.
func (JSON) Unmarshal(data []byte) (benor.Message, error) {
	var raw struct {
		X    benor.Value `json:"x"`
		K    *int        `json:"k"`
		Step *int        `json:"step"`
	}
	raw.X = benor.Unknown
	if err := json.Unmarshal(data, &raw); err != nil {
		return benor.Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.K == nil || raw.Step == nil {
		return benor.Message{}, fmt.Errorf("%w: k and step are required", ErrMalformed)
	}
	return benor.Message{Value: raw.X, Round: *raw.K, Step: *raw.Step}, nil
}

type Proto struct{}

func (Proto) ContentType() string { return ContentTypeProto }

func (Proto) Marshal(msg benor.Message) ([]byte, error) {
	if msg.Round < 0 || msg.Step < 0 {
		return nil, fmt.Errorf("%w: negative round or step", ErrMalformed)
	}
	var b []byte
	b = protowire.AppendTag(b, fieldValue, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(msg.Value)))
	b = protowire.AppendTag(b, fieldRound, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Round))
	b = protowire.AppendTag(b, fieldStep, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Step))
	return b, nil
}

// Unmarshal skips unknown fields. A missing value field decodes as Unknown;
// missing round or step is malformed.
func (Proto) Unmarshal(data []byte) (benor.Message, error) {
	msg := benor.Message{Value: benor.Unknown}
	var haveRound, haveStep bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return benor.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.VarintType || num < fieldValue || num > fieldStep {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return benor.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return benor.Message{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldValue:
			msg.Value = decodeValue(protowire.DecodeZigZag(v))
		case fieldRound:
			msg.Round = int(v)
			haveRound = true
		case fieldStep:
			msg.Step = int(v)
			haveStep = true
		}
	}
	if !haveRound || !haveStep {
		return benor.Message{}, fmt.Errorf("%w: round and step are required", ErrMalformed)
	}
	return msg, nil
}

func decodeValue(x int64) benor.Value {
	if x == int64(benor.Undefined) {
		return benor.Undefined
	}
	return benor.ValueOf(int(x))
}
