package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/forbearing/kvboot/config"
	"github.com/forbearing/kvboot/descriptor"
	"github.com/forbearing/kvboot/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const joinTimeout = 10 * time.Second

// joinTargets lists the HTTP endpoints a non-first node asks to join: the
// management server first, then each known host in descriptor order.
// Duplicates and the node's own host are skipped.
func joinTargets(node config.Node) ([]string, error) {
	self, _, _ := net.SplitHostPort(node.RaftAddr)
	seen := map[string]bool{self: true}
	var targets []string
	add := func(host string) {
		if seen[host] {
			return
		}
		seen[host] = true
		targets = append(targets, net.JoinHostPort(host, strconv.Itoa(node.JoinPort)))
	}

	if node.MgmtServer != "" {
		h, err := descriptor.ParseMgmtServer(node.MgmtServer)
		if err != nil {
			return nil, err
		}
		add(h.Address)
	}
	if node.KnownHosts != "" {
		hosts, err := descriptor.ParseKnownHosts(node.KnownHosts)
		if err != nil {
			return nil, err
		}
		for _, h := range hosts {
			add(h.Address)
		}
	}
	if len(targets) == 0 {
		return nil, errors.New("no management server or known hosts to join")
	}
	return targets, nil
}

// join asks each target in turn to add this node, stopping at the first
// that accepts.
func join(targets []string, raftAddr, id string) error {
	b, err := json.Marshal(JoinReq{ID: id, Addr: raftAddr})
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: joinTimeout}

	var errs []error
	for _, target := range targets {
		err := joinOne(client, target, b)
		if err == nil {
			logrus.Infof("joined ring through %s", target)
			return nil
		}
		logrus.Warnf("join through %s failed: %v", target, err)
		errs = append(errs, err)
	}
	return fmt.Errorf("join failed: %w", errors.Join(errs...))
}

func joinOne(client *http.Client, target string, body []byte) error {
	resp, err := client.Post(fmt.Sprintf("http://%s/join", target), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

// runNode boots a node from its descriptor values and serves until the
// HTTP server stops.
func runNode(cfg config.Config, raftDir string) error {
	node := cfg.Node
	if err := os.MkdirAll(raftDir, 0o755); err != nil {
		return fmt.Errorf("failed to create raft dir %s: %w", raftDir, err)
	}
	id := node.ID
	if id == "" {
		id = node.RaftAddr
	}

	var targets []string
	if !node.First {
		var err error
		if targets, err = joinTargets(node); err != nil {
			return err
		}
	}

	s := store.New(raftDir, node.RaftAddr, node.InMem)
	// Only the first node bootstraps; everyone else joins it.
	if err := s.Open(node.First, id); err != nil {
		return err
	}
	defer s.Close()

	if !node.First {
		if err := join(targets, node.RaftAddr, id); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := newRouter(s, cfg.Status.Path)
	logrus.Infof("node %s serving on %s", id, node.HTTPAddr)
	return r.Run(node.HTTPAddr)
}
