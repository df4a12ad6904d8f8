package types

import "context"

// Role is the part a node plays when it boots into the cluster.
type Role int

const (
	// RoleMaster is the first node; it hosts the management server and bootstraps the ring.
	RoleMaster Role = iota
	// RoleSlave joins an existing ring through the management server.
	RoleSlave
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	default:
		return "unknown"
	}
}

// StatusResult is the field map a status query returns.
type StatusResult map[string]any

// Helper is the surface the orchestration layer drives when it provisions
// and inspects cluster nodes.
type Helper interface {
	// BuildMasterDescriptor renders the descriptor for the node hosting the management server.
	BuildMasterDescriptor(image string) (string, error)

	// BuildSlaveDescriptor renders the descriptor for a node that joins through coordinator.
	BuildSlaveDescriptor(image string, peers []string, coordinator string) (string, error)

	GetNodeInfo(ctx context.Context, nodeRef string) (StatusResult, error)
	GetNodePerformance(ctx context.Context, nodeRef string) (StatusResult, error)
	GetServiceInfo(ctx context.Context, instance string) (StatusResult, error)
	GetServicePerformance(ctx context.Context, instance string) (StatusResult, error)

	// Remove shrinks the service by count nodes. Not supported yet.
	Remove(count int, instance string) error
}

// Store is the interface Raft-backed key-value stores must implement.
type Store interface {
	// Get returns the value for the given key.
	Get(key string) (string, error)

	// Set sets the value for the given key, via distributed consensus.
	Set(key, value string) error

	// Delete removes the given key, via distributed consensus.
	Delete(key string) error

	// Join joins the node, identitifed by nodeID and reachable at addr, to the cluster.
	Join(nodeID string, addr string) error

	// Show who is me, the leader, and followers
	Status() (StoreStatus, error)

	// Stats returns raft internals for performance reporting.
	Stats() map[string]string

	// Len returns the number of keys held locally.
	Len() int
}

// StoreStatus is the Status a Store returns.
type StoreStatus struct {
	Me        Node   `json:"me"`
	Leader    Node   `json:"leader"`
	Followers []Node `json:"followers"`
}

// Node represents a node in the cluster.
type Node struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}
