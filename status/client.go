// Package status queries a running node for health and version data over
// its JSON-RPC endpoint.
package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forbearing/kvboot/metrics"
	"github.com/forbearing/kvboot/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "http://localhost:8000"
	DefaultPath     = "/jsonrpc.yaws"
	DefaultTimeout  = 10 * time.Second

	maxResponseBytes = 4 << 20
)

var (
	ErrRemoteUnreachable = errors.New("remote unreachable")
	ErrMalformedResponse = errors.New("malformed response")
)

// QueryKind is the kind of information requested from a node.
type QueryKind int

const (
	NodeInfo QueryKind = iota
	NodePerformance
	ServiceInfo
	ServicePerformance
)

var kindNames = map[QueryKind]string{
	NodeInfo:           "node-info",
	NodePerformance:    "node-performance",
	ServiceInfo:        "service-info",
	ServicePerformance: "service-performance",
}

func (k QueryKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseQueryKind accepts the names printed by String.
func ParseQueryKind(s string) (QueryKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown query kind %q", s)
}

// Method returns the remote method invoked for k.
//
// NOTE: every kind maps to get_node_info. Deployed nodes have only ever been
// queried this way, so the performance and service kinds return node info.
// This is most likely a latent bug; keep it until the intended mapping is
// confirmed.
func (k QueryKind) Method() string {
	return MethodGetNodeInfo
}

func (k QueryKind) reportsVersion() bool {
	return k == NodeInfo || k == ServiceInfo
}

// Config locates the status endpoint.
type Config struct {
	Endpoint string
	Path     string
	// Timeout bounds a whole call. Zero selects DefaultTimeout.
	Timeout time.Duration
	// Package is the name handed to the VersionProvider.
	Package string
}

func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Path:     DefaultPath,
		Timeout:  DefaultTimeout,
		Package:  DefaultPackage,
	}
}

// Client talks to a single status endpoint.
type Client struct {
	cfg        Config
	url        string
	httpClient *http.Client
	versions   VersionProvider
}

// NewClient returns a Client for cfg. A nil versions falls back to the
// local RPM database.
func NewClient(cfg Config, versions VersionProvider) *Client {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Package == "" {
		cfg.Package = def.Package
	}
	if versions == nil {
		versions = RPMVersionProvider{}
	}

	return &Client{
		cfg:        cfg,
		url:        strings.TrimRight(cfg.Endpoint, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		versions:   versions,
	}
}

// GetNodeInfo returns node information merged with the installed version.
func (c *Client) GetNodeInfo(ctx context.Context, nodeRef string) (types.StatusResult, error) {
	return c.Query(ctx, NodeInfo, nodeRef)
}

func (c *Client) GetNodePerformance(ctx context.Context, nodeRef string) (types.StatusResult, error) {
	return c.Query(ctx, NodePerformance, nodeRef)
}

// GetServiceInfo returns service information merged with the installed version.
func (c *Client) GetServiceInfo(ctx context.Context, instance string) (types.StatusResult, error) {
	return c.Query(ctx, ServiceInfo, instance)
}

func (c *Client) GetServicePerformance(ctx context.Context, instance string) (types.StatusResult, error) {
	return c.Query(ctx, ServicePerformance, instance)
}

// Query runs one status query. ref names the node or service but is not
// sent: the endpoint is fixed by Config.
//
// The result is nil whenever err is non-nil.
func (c *Client) Query(ctx context.Context, kind QueryKind, ref string) (types.StatusResult, error) {
	start := time.Now()
	res, err := c.query(ctx, kind, ref)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StatusQueries.WithLabelValues(kind.String(), outcome).Inc()
	metrics.StatusQueryDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	return res, err
}

func (c *Client) query(ctx context.Context, kind QueryKind, ref string) (types.StatusResult, error) {
	value, err := c.call(ctx, kind.Method())
	if err != nil {
		logrus.Errorf("status query %s for %q failed: %v", kind, ref, err)
		return nil, err
	}

	res := types.StatusResult{}
	if kind.reportsVersion() {
		res["version"] = c.version(ctx)
	}
	return Merge(res, value), nil
}

// version never fails; a failed lookup reports an empty version.
func (c *Client) version(ctx context.Context) string {
	v, err := c.versions.Version(ctx, c.cfg.Package)
	if err != nil {
		logrus.Debugf("version lookup for %s failed: %v", c.cfg.Package, err)
		return ""
	}
	return v
}

func (c *Client) call(ctx context.Context, method string) (map[string]any, error) {
	b, err := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []any{},
		ID:      uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRemoteUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s returned %s", ErrRemoteUnreachable, c.url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %s", ErrRemoteUnreachable, c.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrMalformedResponse, c.url, resp.Status)
	}

	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("%w: %s: error %d: %s", ErrMalformedResponse, method, env.Error.Code, env.Error.Message)
	}
	if env.Result == nil || env.Result.Value == nil {
		return nil, fmt.Errorf("%w: %s: no result.value", ErrMalformedResponse, method)
	}
	return env.Result.Value, nil
}

// Merge copies src into dst and returns dst. Keys present in both take the
// value from src.
func Merge(dst, src map[string]any) types.StatusResult {
	if dst == nil {
		dst = types.StatusResult{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
