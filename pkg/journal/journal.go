// Package journal persists node snapshots into a storage backend, one
// borsh-encoded record per state change, so a run can be replayed or
// inspected after the fact.
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/near/borsh-go"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/storage"
)

var ErrClosed = errors.New("journal is closed")

// Record is the stored form of a snapshot. Fields are fixed-width so the
// encoding does not depend on the platform int size.
type Record struct {
	Seq      uint64 `json:"seq"`
	Session  string `json:"session"`
	NodeID   int32  `json:"node"`
	Round    int64  `json:"round"`
	Value    int8   `json:"-"`
	Decided  bool   `json:"decided"`
	Killed   bool   `json:"killed"`
	Faulty   bool   `json:"faulty"`
	Event    string `json:"event"`
	UnixNano int64  `json:"unix_nano"`
}

// X is the recorded value in its wire form.
func (r Record) X() benor.Value {
	return benor.Value(r.Value)
}

// Time is when the record was written.
func (r Record) Time() time.Time {
	return time.Unix(0, r.UnixNano)
}

// MarshalJSON adds the value under "x" in its wire form.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return json.Marshal(struct {
		plain
		X benor.Value `json:"x"`
	}{plain(r), r.X()})
}

func (r Record) String() string {
	return fmt.Sprintf("#%d %s round=%d x=%s decided=%t killed=%t", r.Seq, r.Event, r.Round, r.X(), r.Decided, r.Killed)
}

// Journal implements benor.Recorder on top of a Storage.
type Journal struct {
	mu     sync.Mutex
	db     storage.Storage
	prefix []byte
	seq    uint64
	closed bool
	now    func() time.Time
}

// Open attaches a journal for nodeID to db and resumes numbering after the
// last record already stored for that node.
func Open(db storage.Storage, nodeID int) (*Journal, error) {
	j := &Journal{
		db:     db,
		prefix: []byte("node/" + strconv.Itoa(nodeID) + "/"),
		now:    time.Now,
	}
	err := db.IteratePrefix(j.prefix, func(key, _ []byte) error {
		seq, err := j.seqOf(key)
		if err != nil {
			return err
		}
		if seq >= j.seq {
			j.seq = seq + 1
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return j, nil
}

func (j *Journal) key(seq uint64) []byte {
	return append(append([]byte(nil), j.prefix...), []byte(fmt.Sprintf("%020d", seq))...)
}

func (j *Journal) seqOf(key []byte) (uint64, error) {
	raw := bytes.TrimPrefix(key, j.prefix)
	seq, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed journal key %q: %w", key, err)
	}
	return seq, nil
}

// Record appends a snapshot.
func (j *Journal) Record(s benor.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	rec := Record{
		Seq:      j.seq,
		Session:  s.Session,
		NodeID:   int32(s.NodeID),
		Round:    int64(s.Round),
		Value:    int8(s.Value),
		Decided:  s.Decided,
		Killed:   s.Killed,
		Faulty:   s.Faulty,
		Event:    s.Event,
		UnixNano: j.now().UnixNano(),
	}
	data, err := borsh.Serialize(rec)
	if err != nil {
		return fmt.Errorf("serialize record %d: %w", rec.Seq, err)
	}
	if err := j.db.Put(j.key(rec.Seq), data); err != nil {
		return fmt.Errorf("store record %d: %w", rec.Seq, err)
	}
	j.seq++
	return nil
}

// History returns every stored record in order.
func (j *Journal) History() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}
	var out []Record
	err := j.db.IteratePrefix(j.prefix, func(key, value []byte) error {
		var rec Record
		if err := borsh.Deserialize(&rec, value); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Len is the number of records written so far.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Backup copies the underlying storage to dst.
func (j *Journal) Backup(dst string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return j.db.Backup(dst)
}

// Close closes the journal and its storage.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
