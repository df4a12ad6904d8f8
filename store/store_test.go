package store

import (
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/raft"
)

func openStore(t *testing.T, dir string, inmem, bootstrap bool, id string) *Store {
	t.Helper()
	s := New(dir, "127.0.0.1:0", inmem)
	if err := s.Open(bootstrap, id); err != nil {
		t.Fatalf("open %s: %v", id, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitForLeader(t *testing.T, s *Store) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if s.raft.State() == raft.Leader {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("store never became leader")
}

func TestSingleNodeStore(t *testing.T) {
	s := openStore(t, t.TempDir(), true, true, "node0")
	if s.Addr() == "127.0.0.1:0" {
		t.Fatalf("advertised address still has port 0")
	}
	waitForLeader(t, s)

	if err := s.Set("ring", "scalaris"); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get("ring"); err != nil || v != "scalaris" {
		t.Errorf("Get(ring) = %q, %v", v, err)
	}
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if err := s.Delete("ring"); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("Len after delete = %d", s.Len())
	}

	st, err := s.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Me.ID != "node0" || st.Me.Address != s.Addr() {
		t.Errorf("Me = %+v", st.Me)
	}
	if st.Leader.ID != "node0" || st.Leader.Address != s.Addr() {
		t.Errorf("Leader = %+v", st.Leader)
	}
	if len(st.Followers) != 0 {
		t.Errorf("Followers = %+v", st.Followers)
	}

	// already a member with the same id and address
	if err := s.Join("node0", s.Addr()); err != nil {
		t.Errorf("idempotent join: %v", err)
	}
	if st, _ := s.Status(); len(st.Followers) != 0 {
		t.Errorf("join changed membership: %+v", st.Followers)
	}

	if got := s.Stats()["state"]; got != "Leader" {
		t.Errorf("stats state = %q", got)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWriteOnNonBootstrappedStore(t *testing.T) {
	s := openStore(t, t.TempDir(), true, false, "node1")

	if err := s.Set("k", "v"); !errors.Is(err, ErrNotLeader) {
		t.Errorf("Set error = %v, want ErrNotLeader", err)
	}
	if err := s.Delete("k"); !errors.Is(err, ErrNotLeader) {
		t.Errorf("Delete error = %v, want ErrNotLeader", err)
	}
}

func TestReopenBootstrappedStore(t *testing.T) {
	dir := t.TempDir()

	first := New(dir, "127.0.0.1:0", false)
	if err := first.Open(true, "node0"); err != nil {
		t.Fatal(err)
	}
	waitForLeader(t, first)
	if err := first.Set("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// bootstrapping over existing state is tolerated
	again := New(dir, "127.0.0.1:0", false)
	if err := again.Open(true, "node0"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := again.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenBadAddress(t *testing.T) {
	s := New(t.TempDir(), "0.0.0.0:0", true)
	if err := s.Open(true, "node0"); err == nil {
		s.Close()
		t.Error("expected error for unadvertisable address")
	}
}
