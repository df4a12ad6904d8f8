package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
)

const (
	opSet    = "set"
	opDelete = "delete"
)

type fsm Store

func (f *fsm) Apply(l *raft.Log) any {
	var c command
	if err := json.Unmarshal(l.Data, &c); err != nil {
		panic(fmt.Sprintf("failed to unmarshal command: %s", err.Error()))
	}

	switch c.Op {
	case opSet:
		f.m.Store(c.Key, c.Value)
	case opDelete:
		f.m.Delete(c.Key)
	default:
		panic(fmt.Sprintf("unrecognized command op: %s", c.Op))
	}
	return nil
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{store: f.copy()}, nil
}

func (f *fsm) copy() map[string]string {
	o := make(map[string]string)
	f.m.Range(func(key, value any) bool {
		o[key.(string)] = value.(string)
		return true
	})
	return o
}

// Restore replaces the local state with a snapshot. Raft guarantees Apply
// isn't running concurrently.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	o := make(map[string]string)
	if err := json.NewDecoder(rc).Decode(&o); err != nil {
		return err
	}

	f.m.Range(func(key, _ any) bool {
		if _, ok := o[key.(string)]; !ok {
			f.m.Delete(key)
		}
		return true
	})
	for k, v := range o {
		f.m.Store(k, v)
	}
	return nil
}

type fsmSnapshot struct {
	store map[string]string
}

func (f *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	b, err := json.Marshal(f.store)
	if err == nil {
		_, err = sink.Write(b)
	}
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (f *fsmSnapshot) Release() {}
