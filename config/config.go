// Package config gathers the settings of every kvboot command. Defaults
// come first, SCALARIS_* and KVBOOT_* environment variables override them,
// and command-line flags override both.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forbearing/kvboot/descriptor"
	"github.com/forbearing/kvboot/status"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	// DefaultHTTPAddr listens on every interface so peers can send joins.
	DefaultHTTPAddr = ":8000"
	// DefaultRaftAddr only suits a single-VM ring; raft advertises it to
	// peers, so multi-VM rings must set an address the others can reach.
	DefaultRaftAddr = "localhost:14195"
	DefaultImage    = "scalaris"
)

type Config struct {
	Log        Log
	Descriptor descriptor.Config
	Status     status.Config
	Node       Node
	// Image is the image identifier written into descriptors.
	Image string
}

type Log struct {
	Level  string
	Format string
}

// Node configures a cluster node booted from descriptor clauses.
type Node struct {
	ID       string
	HTTPAddr string
	RaftAddr string
	// JoinPort is the HTTP port join requests are sent to on the
	// management server and known hosts.
	JoinPort int
	InMem    bool

	// Values a descriptor exports into the VM context.
	First      bool
	KnownHosts string
	MgmtServer string
}

func Default() Config {
	return Config{
		Log:        Log{Level: "info", Format: "text"},
		Descriptor: descriptor.DefaultConfig(),
		Status:     status.DefaultConfig(),
		Node: Node{
			HTTPAddr: DefaultHTTPAddr,
			RaftAddr: DefaultRaftAddr,
			JoinPort: 8000,
		},
		Image: DefaultImage,
	}
}

// LoadEnv overlays environment variables read through getenv onto cfg.
func LoadEnv(cfg *Config, getenv func(string) string) error {
	var err error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" && err == nil {
			if *dst, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("%s: invalid integer %q", key, v)
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" && err == nil {
			if *dst, err = strconv.ParseBool(v); err != nil {
				err = fmt.Errorf("%s: invalid boolean %q", key, v)
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" && err == nil {
			if *dst, err = time.ParseDuration(v); err != nil {
				err = fmt.Errorf("%s: invalid duration %q", key, v)
			}
		}
	}

	str("KVBOOT_LOG_LEVEL", &cfg.Log.Level)
	str("KVBOOT_LOG_FORMAT", &cfg.Log.Format)
	str("KVBOOT_IMAGE", &cfg.Image)
	str("KVBOOT_TEMPLATE", &cfg.Descriptor.TemplatePath)
	num("KVBOOT_PORT", &cfg.Descriptor.Port)
	str("KVBOOT_STATUS_ENDPOINT", &cfg.Status.Endpoint)
	str("KVBOOT_STATUS_PATH", &cfg.Status.Path)
	dur("KVBOOT_STATUS_TIMEOUT", &cfg.Status.Timeout)
	str("KVBOOT_PACKAGE", &cfg.Status.Package)

	str("SCALARIS_NODE_ID", &cfg.Node.ID)
	str("SCALARIS_HTTP_ADDR", &cfg.Node.HTTPAddr)
	str("SCALARIS_RAFT_ADDR", &cfg.Node.RaftAddr)
	num("SCALARIS_JOIN_PORT", &cfg.Node.JoinPort)
	flag("SCALARIS_FIRST", &cfg.Node.First)
	str("SCALARIS_KNOWN_HOSTS", &cfg.Node.KnownHosts)
	str("SCALARIS_MGMT_SERVER", &cfg.Node.MgmtServer)
	return err
}

func BindLogFlags(fs *pflag.FlagSet, cfg *Log) {
	fs.StringVar(&cfg.Level, "log-level", cfg.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Format, "log-format", cfg.Format, "Log format (text, json)")
}

func BindDescriptorFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Image, "image", cfg.Image, "Image identifier written into the descriptor")
	fs.StringVarP(&cfg.Descriptor.TemplatePath, "template", "t", cfg.Descriptor.TemplatePath, "Descriptor template file, built-in template if empty")
	fs.IntVar(&cfg.Descriptor.Port, "port", cfg.Descriptor.Port, "Port encoded for known hosts and the management server")
}

func BindStatusFlags(fs *pflag.FlagSet, cfg *status.Config) {
	fs.StringVarP(&cfg.Endpoint, "endpoint", "e", cfg.Endpoint, "Status endpoint base URL")
	fs.StringVar(&cfg.Path, "rpc-path", cfg.Path, "JSON-RPC path on the status endpoint")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Status call timeout")
	fs.StringVar(&cfg.Package, "package", cfg.Package, "Package whose installed version is reported")
}

func BindNodeFlags(fs *pflag.FlagSet, cfg *Node) {
	fs.StringVarP(&cfg.RaftAddr, "raddr", "r", cfg.RaftAddr, "Set Raft bind address")
	fs.StringVarP(&cfg.HTTPAddr, "haddr", "a", cfg.HTTPAddr, "Set HTTP bind address")
	fs.StringVar(&cfg.ID, "id", cfg.ID, "Node ID. If not set, same as Raft bind address")
	fs.IntVar(&cfg.JoinPort, "join-port", cfg.JoinPort, "HTTP port join requests are sent to")
	fs.BoolVar(&cfg.InMem, "inmem", cfg.InMem, "Keep the raft log in memory")
	fs.BoolVar(&cfg.First, "first", cfg.First, "Bootstrap a new ring instead of joining one")
	fs.StringVar(&cfg.KnownHosts, "known-hosts", cfg.KnownHosts, "known_hosts clause from the descriptor")
	fs.StringVar(&cfg.MgmtServer, "mgmt-server", cfg.MgmtServer, "mgmt_server clause from the descriptor")
}

// SetupLogger applies the log settings to the standard logrus logger.
func SetupLogger(cfg Log) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("log format %q, want text or json", cfg.Format)
	}
	return nil
}
