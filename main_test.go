package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forbearing/kvboot/helper"
	"github.com/forbearing/kvboot/status"
)

func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(func(k string) string { return env[k] })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDescribeMaster(t *testing.T) {
	out, err := execute(t, nil, "describe", "master", "--image", "scalaris-0.3")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`IMAGE  = "scalaris-0.3"`,
		`SCALARIS_FIRST       = "true"`,
		`"{known_hosts, []}."`,
		`"{mgmt_server, {{127,0,0,1}, 14195, mgmt_server}}."`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestDescribeSlave(t *testing.T) {
	out, err := execute(t, nil, "describe", "slave", "-c", "10.0.0.1", "10.0.0.2", "10.0.0.3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "{known_hosts, [{{10,0,0,2}, 14195, service_per_vm}, {{10,0,0,3}, 14195, service_per_vm}]}.") {
		t.Errorf("known hosts missing:\n%s", out)
	}

	if _, err := execute(t, nil, "describe", "slave", "-c", "10.0.0.1", "10.0.0"); err == nil {
		t.Error("expected error for malformed peer")
	}
	if _, err := execute(t, nil, "describe", "slave", "10.0.0.2"); err == nil {
		t.Error("expected error without coordinator")
	}
}

func TestDescribeTemplateFromEnv(t *testing.T) {
	_, err := execute(t, map[string]string{"KVBOOT_TEMPLATE": "/nonexistent/scalaris.one.vm.tmpl"}, "describe", "master")
	if err == nil {
		t.Error("expected error for unreadable template")
	}
}

func TestStatusCommand(t *testing.T) {
	server := httptest.NewServer(newRouter(newFakeStore(), status.DefaultPath))
	t.Cleanup(server.Close)

	out, err := execute(t, nil, "status", "node-performance", "vm-1", "--endpoint", server.URL, "--format", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "state: Leader") {
		t.Errorf("yaml output:\n%s", out)
	}

	out, err = execute(t, nil, "status", "node-performance", "--endpoint", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"state": "Leader"`) {
		t.Errorf("json output:\n%s", out)
	}

	if _, err := execute(t, nil, "status", "cpu", "--endpoint", server.URL); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRemoveCommand(t *testing.T) {
	_, err := execute(t, nil, "remove", "2", "scalaris-1")
	if !errors.Is(err, helper.ErrNotImplemented) {
		t.Errorf("error = %v, want ErrNotImplemented", err)
	}
}
