// Package store is the raft-replicated key-value store a booted node runs.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/forbearing/kvboot/types"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	"github.com/sirupsen/logrus"
)

const (
	retainSnapshotCount = 2
	raftTimeout         = 10 * time.Second
	maxPool             = 3
)

var (
	// ErrNotLeader is returned by writes on a follower.
	ErrNotLeader = errors.New("not leader")
	ErrNotFound  = errors.New("key not found")
)

var _ types.Store = (*Store)(nil)

type command struct {
	Op    string `json:"op,omitempty"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// Store keeps the ring's key-value pairs. Writes go through raft; reads are
// served from the local copy.
type Store struct {
	raftDir  string
	raftAddr string
	raft     *raft.Raft
	bolt     *raftboltdb.BoltStore
	inmem    bool

	m sync.Map // key type is string, value type is string.
}

func New(raftDir string, raftAddr string, inmem bool) *Store {
	return &Store{
		raftDir:  raftDir,
		inmem:    inmem,
		raftAddr: raftAddr,
	}
}

// Addr is the address raft advertises. With port 0 it is only known after Open.
func (s *Store) Addr() string {
	return s.raftAddr
}

// Open starts raft. With bootstrap set the node forms a new single-member
// ring, which is what the first node (the management server host) does.
func (s *Store) Open(bootstrap bool, localID string) error {
	if localID == "" {
		localID = s.raftAddr
	}
	out := logrus.StandardLogger().WriterLevel(logrus.DebugLevel)

	conf := raft.DefaultConfig()
	conf.LocalID = raft.ServerID(localID)
	conf.LogOutput = out

	addr, err := net.ResolveTCPAddr("tcp", s.raftAddr)
	if err != nil {
		return fmt.Errorf("resolve raft address %s: %w", s.raftAddr, err)
	}
	var advertise net.Addr
	if addr.Port != 0 {
		advertise = addr
	}
	transport, err := raft.NewTCPTransport(s.raftAddr, advertise, maxPool, raftTimeout, out)
	if err != nil {
		return fmt.Errorf("tcp transport: %w", err)
	}
	s.raftAddr = string(transport.LocalAddr())

	snapshots, err := raft.NewFileSnapshotStore(s.raftDir, retainSnapshotCount, out)
	if err != nil {
		transport.Close()
		return fmt.Errorf("file snapshot store: %w", err)
	}

	var logStore raft.LogStore
	var stableStore raft.StableStore
	if s.inmem {
		logStore = raft.NewInmemStore()
		stableStore = raft.NewInmemStore()
	} else {
		boltDB, err := raftboltdb.New(raftboltdb.Options{
			Path: filepath.Join(s.raftDir, "raft.db"),
		})
		if err != nil {
			transport.Close()
			return fmt.Errorf("new bbolt store: %w", err)
		}
		s.bolt = boltDB
		logStore = boltDB
		stableStore = boltDB
	}

	ra, err := raft.NewRaft(conf, (*fsm)(s), logStore, stableStore, snapshots, transport)
	if err != nil {
		transport.Close()
		s.closeBolt()
		return fmt.Errorf("new raft: %w", err)
	}
	s.raft = ra

	if bootstrap {
		logrus.Infof("bootstrapping ring with %s at %s", localID, transport.LocalAddr())
		f := ra.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: conf.LocalID, Address: transport.LocalAddr()}},
		})
		if err := f.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			s.Close()
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}

// Close shuts raft down and releases the log store.
func (s *Store) Close() error {
	var err error
	if s.raft != nil {
		err = s.raft.Shutdown().Error()
		s.raft = nil
	}
	if berr := s.closeBolt(); err == nil {
		err = berr
	}
	return err
}

func (s *Store) closeBolt() error {
	if s.bolt == nil {
		return nil
	}
	err := s.bolt.Close()
	s.bolt = nil
	return err
}

// Get returns ErrNotFound for keys the store doesn't hold.
func (s *Store) Get(key string) (string, error) {
	value, ok := s.m.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	return value.(string), nil
}

func (s *Store) Set(key, value string) error {
	return s.apply(command{Op: opSet, Key: key, Value: value})
}

func (s *Store) Delete(key string) error {
	return s.apply(command{Op: opDelete, Key: key})
}

func (s *Store) apply(c command) error {
	if s.raft.State() != raft.Leader {
		return ErrNotLeader
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.raft.Apply(b, raftTimeout).Error()
}

// Join adds the node identified by nodeID at addr as a voter. The node must
// already answer raft traffic at addr.
func (s *Store) Join(nodeID, addr string) error {
	logrus.Infof("received join request for remote node %s at %s", nodeID, addr)

	configFuture := s.raft.GetConfiguration()
	if err := configFuture.Error(); err != nil {
		logrus.Errorf("failed to get raft configuration: %v", err)
		return err
	}

	for _, srv := range configFuture.Configuration().Servers {
		sameID := srv.ID == raft.ServerID(nodeID)
		sameAddr := srv.Address == raft.ServerAddress(addr)
		switch {
		case sameID && sameAddr:
			logrus.Infof("node %s at %s already member of cluster, ignoring join request", nodeID, addr)
			return nil
		case sameID || sameAddr:
			// stale entry for a re-provisioned VM
			if err := s.raft.RemoveServer(srv.ID, 0, 0).Error(); err != nil {
				return fmt.Errorf("error removing existing node %s at %s: %w", srv.ID, srv.Address, err)
			}
		}
	}

	if err := s.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0).Error(); err != nil {
		return err
	}
	logrus.Infof("node %s at %s joined successfully", nodeID, addr)
	return nil
}

func (s *Store) Status() (types.StoreStatus, error) {
	leaderAddr, leaderID := s.raft.LeaderWithID()
	status := types.StoreStatus{
		Me:        types.Node{Address: s.raftAddr},
		Leader:    types.Node{ID: string(leaderID), Address: string(leaderAddr)},
		Followers: []types.Node{},
	}

	f := s.raft.GetConfiguration()
	if err := f.Error(); err != nil {
		return types.StoreStatus{}, err
	}
	for _, srv := range f.Configuration().Servers {
		n := types.Node{ID: string(srv.ID), Address: string(srv.Address)}
		if srv.ID != leaderID {
			status.Followers = append(status.Followers, n)
		}
		if n.Address == s.raftAddr {
			status.Me = n
		}
	}
	return status, nil
}

// Stats reports raft internals (state, term, indexes, peers).
func (s *Store) Stats() map[string]string {
	return s.raft.Stats()
}

func (s *Store) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
