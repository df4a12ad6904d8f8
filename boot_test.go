package main

import (
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/forbearing/kvboot/config"
	"github.com/forbearing/kvboot/descriptor"
	"github.com/forbearing/kvboot/status"
)

func TestJoinTargets(t *testing.T) {
	b := descriptor.New(descriptor.DefaultConfig())
	known, err := b.KnownHosts([]string{"10.0.0.2", "10.0.0.1", "10.0.0.3", "10.0.0.4"})
	if err != nil {
		t.Fatal(err)
	}
	mgmt, err := b.MgmtServer("10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}

	got, err := joinTargets(config.Node{
		RaftAddr:   "10.0.0.3:14195",
		JoinPort:   8000,
		KnownHosts: known,
		MgmtServer: mgmt,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10.0.0.1:8000", "10.0.0.2:8000", "10.0.0.4:8000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("targets = %v, want %v", got, want)
	}
}

func TestJoinTargetsErrors(t *testing.T) {
	tests := []struct {
		name string
		node config.Node
	}{
		{"nothing to join", config.Node{RaftAddr: "10.0.0.3:14195", JoinPort: 8000}},
		{"bad mgmt clause", config.Node{RaftAddr: "10.0.0.3:14195", JoinPort: 8000, MgmtServer: "{mgmt_server}."}},
		{"bad known hosts", config.Node{RaftAddr: "10.0.0.3:14195", JoinPort: 8000, KnownHosts: "[10.0.0.1]"}},
		{"only self", config.Node{RaftAddr: "10.0.0.3:14195", JoinPort: 8000, KnownHosts: "{known_hosts, [{{10,0,0,3}, 14195, service_per_vm}]}."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := joinTargets(tt.node); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestJoinFallsThroughTargets(t *testing.T) {
	leader := newFakeStore()
	good := httptest.NewServer(newRouter(leader, status.DefaultPath))
	t.Cleanup(good.Close)

	follower := newFakeStore()
	follower.follower = true
	refusing := httptest.NewServer(newRouter(follower, status.DefaultPath))
	t.Cleanup(refusing.Close)

	targets := []string{
		"127.0.0.1:1",
		strings.TrimPrefix(good.URL, "http://"),
	}
	if err := join(targets, "10.0.0.5:14195", "n5"); err != nil {
		t.Fatal(err)
	}
	if len(leader.joined) != 1 || leader.joined[0].Address != "10.0.0.5:14195" {
		t.Errorf("joined = %+v", leader.joined)
	}

	err := join([]string{"127.0.0.1:1"}, "10.9.9.9:14195", "n9")
	if err == nil {
		t.Error("expected join to fail when every target refuses")
	}

	err = join([]string{strings.TrimPrefix(refusing.URL, "http://")}, "10.9.9.9:14195", "n9")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want HTTP 500 from target", err)
	}
}
