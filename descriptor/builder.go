// Package descriptor renders the boot descriptors handed to Scalaris nodes
// when they are provisioned.
//
// A descriptor is a VM template with four substitution points: the image
// to boot, whether the node is the first one of the ring, the known_hosts
// clause and the mgmt_server clause. The two clauses are Erlang terms the
// node feeds into its local configuration.
package descriptor

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/forbearing/kvboot/metrics"
	"github.com/forbearing/kvboot/types"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPort        = 14195
	DefaultMgmtName    = "mgmt_server"
	DefaultServiceName = "service_per_vm"
	DefaultSelfAddress = "127.0.0.1"
)

// ErrTemplateUnavailable is returned when the template can't be read or rendered.
var ErrTemplateUnavailable = errors.New("template unavailable")

//go:embed scalaris.one.vm.tmpl
var defaultTemplate []byte

// Config controls clause encoding and where the template lives.
type Config struct {
	// TemplatePath is read on every build. Empty selects the built-in template.
	TemplatePath string
	Port         int
	MgmtName     string
	ServiceName  string
	// SelfAddress is what the master puts in its own mgmt_server clause.
	SelfAddress string
}

// DefaultConfig returns the Scalaris defaults.
func DefaultConfig() Config {
	return Config{
		Port:        DefaultPort,
		MgmtName:    DefaultMgmtName,
		ServiceName: DefaultServiceName,
		SelfAddress: DefaultSelfAddress,
	}
}

// Params are the four values substituted into the template.
type Params struct {
	Image      string
	First      string
	KnownHosts string
	MgmtServer string
}

// Builder renders descriptors. It holds no mutable state and is safe for
// concurrent use.
type Builder struct {
	cfg Config
}

// New creates a Builder, filling zero fields of cfg with defaults.
func New(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.MgmtName == "" {
		cfg.MgmtName = def.MgmtName
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.SelfAddress == "" {
		cfg.SelfAddress = def.SelfAddress
	}
	return &Builder{cfg: cfg}
}

// KnownHosts renders {known_hosts, [...]}. with peers in the given order.
func (b *Builder) KnownHosts(peers []string) (string, error) {
	entries := make([]string, 0, len(peers))
	for _, p := range peers {
		tuple, err := EncodeAddress(p)
		if err != nil {
			return "", err
		}
		entries = append(entries, fmt.Sprintf("{%s, %d, %s}", tuple, b.cfg.Port, b.cfg.ServiceName))
	}
	return "{known_hosts, [" + strings.Join(entries, ", ") + "]}.", nil
}

// MgmtServer renders {mgmt_server, {{a,b,c,d}, port, mgmt_server}}.
func (b *Builder) MgmtServer(addr string) (string, error) {
	tuple, err := EncodeAddress(addr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("{%s, {%s, %d, %s}}.", b.cfg.MgmtName, tuple, b.cfg.Port, b.cfg.MgmtName), nil
}

// BuildMasterDescriptor renders the descriptor for the node that hosts the
// management server. It never carries peers.
func (b *Builder) BuildMasterDescriptor(image string) (string, error) {
	d, err := b.buildMaster(image)
	record(types.RoleMaster, err)
	return d, err
}

func (b *Builder) buildMaster(image string) (string, error) {
	known, err := b.KnownHosts(nil)
	if err != nil {
		return "", err
	}
	mgmt, err := b.MgmtServer(b.cfg.SelfAddress)
	if err != nil {
		return "", err
	}
	return b.Render(Params{Image: image, First: "true", KnownHosts: known, MgmtServer: mgmt})
}

// BuildSlaveDescriptor renders the descriptor for a node joining through
// coordinator. An empty peer list is allowed.
func (b *Builder) BuildSlaveDescriptor(image string, peers []string, coordinator string) (string, error) {
	d, err := b.buildSlave(image, peers, coordinator)
	record(types.RoleSlave, err)
	return d, err
}

func (b *Builder) buildSlave(image string, peers []string, coordinator string) (string, error) {
	known, err := b.KnownHosts(peers)
	if err != nil {
		return "", err
	}
	mgmt, err := b.MgmtServer(coordinator)
	if err != nil {
		return "", err
	}
	return b.Render(Params{Image: image, First: "false", KnownHosts: known, MgmtServer: mgmt})
}

// Render fills the template with p. Nothing is returned unless the whole
// template executes.
func (b *Builder) Render(p Params) (string, error) {
	name, src, err := b.loadTemplate()
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %s", ErrTemplateUnavailable, name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("%w: execute %s: %s", ErrTemplateUnavailable, name, err)
	}
	return buf.String(), nil
}

func (b *Builder) loadTemplate() (string, []byte, error) {
	if b.cfg.TemplatePath == "" {
		return "scalaris.one.vm.tmpl", defaultTemplate, nil
	}
	src, err := os.ReadFile(b.cfg.TemplatePath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrTemplateUnavailable, err)
	}
	return b.cfg.TemplatePath, src, nil
}

func record(role types.Role, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		logrus.Errorf("failed to build %s descriptor: %v", role, err)
	} else {
		logrus.Debugf("built %s descriptor", role)
	}
	metrics.DescriptorsBuilt.WithLabelValues(role.String(), result).Inc()
}
