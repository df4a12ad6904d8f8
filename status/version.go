package status

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultPackage is the package whose version is reported as "version".
const DefaultPackage = "scalaris-svn"

// VersionProvider looks up the installed version of a software package.
type VersionProvider interface {
	Version(ctx context.Context, pkg string) (string, error)
}

// RPMVersionProvider queries the local RPM database.
type RPMVersionProvider struct {
	// Command defaults to "rpm".
	Command string
}

func (p RPMVersionProvider) Version(ctx context.Context, pkg string) (string, error) {
	name := p.Command
	if name == "" {
		name = "rpm"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, "-q", pkg, "--qf", "%{VERSION}")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s -q %s: %w: %s", name, pkg, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// StaticVersion always reports the same version.
type StaticVersion string

func (v StaticVersion) Version(context.Context, string) (string, error) {
	return string(v), nil
}
