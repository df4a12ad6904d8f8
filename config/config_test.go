package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadEnv(t *testing.T) {
	cfg := Default()
	err := LoadEnv(&cfg, envMap(map[string]string{
		"KVBOOT_TEMPLATE":        "/etc/kvboot/scalaris.one.vm.tmpl",
		"KVBOOT_STATUS_ENDPOINT": "http://10.0.0.1:8000",
		"KVBOOT_STATUS_TIMEOUT":  "3s",
		"SCALARIS_FIRST":         "true",
		"SCALARIS_MGMT_SERVER":   "{mgmt_server, {{10,0,0,1}, 14195, mgmt_server}}.",
		"SCALARIS_JOIN_PORT":     "8080",
	}))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Descriptor.TemplatePath != "/etc/kvboot/scalaris.one.vm.tmpl" {
		t.Errorf("template = %q", cfg.Descriptor.TemplatePath)
	}
	if cfg.Status.Endpoint != "http://10.0.0.1:8000" || cfg.Status.Timeout != 3*time.Second {
		t.Errorf("status = %+v", cfg.Status)
	}
	if !cfg.Node.First || cfg.Node.JoinPort != 8080 {
		t.Errorf("node = %+v", cfg.Node)
	}
	// untouched values keep their defaults
	if cfg.Descriptor.Port != 14195 || cfg.Status.Path != "/jsonrpc.yaws" || cfg.Node.RaftAddr != DefaultRaftAddr || cfg.Node.HTTPAddr != ":8000" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	tests := map[string]string{
		"KVBOOT_PORT":           "fourteen",
		"SCALARIS_FIRST":        "maybe",
		"KVBOOT_STATUS_TIMEOUT": "10",
	}
	for key, val := range tests {
		cfg := Default()
		if err := LoadEnv(&cfg, envMap(map[string]string{key: val})); err == nil {
			t.Errorf("%s=%q: expected error", key, val)
		}
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	cfg := Default()
	if err := LoadEnv(&cfg, envMap(map[string]string{"KVBOOT_STATUS_ENDPOINT": "http://env:8000"})); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindStatusFlags(fs, &cfg.Status)
	BindDescriptorFlags(fs, &cfg)
	if err := fs.Parse([]string{"--endpoint", "http://flag:8000", "--port", "14000"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Status.Endpoint != "http://flag:8000" {
		t.Errorf("endpoint = %q", cfg.Status.Endpoint)
	}
	if cfg.Descriptor.Port != 14000 {
		t.Errorf("port = %d", cfg.Descriptor.Port)
	}

	fs = pflag.NewFlagSet("env", pflag.ContinueOnError)
	cfg2 := Default()
	LoadEnv(&cfg2, envMap(map[string]string{"KVBOOT_STATUS_ENDPOINT": "http://env:8000"}))
	BindStatusFlags(fs, &cfg2.Status)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if cfg2.Status.Endpoint != "http://env:8000" {
		t.Errorf("endpoint = %q, want env value", cfg2.Status.Endpoint)
	}
}

func TestSetupLogger(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	if err := SetupLogger(Log{Level: "debug", Format: "json"}); err != nil {
		t.Fatal(err)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v", logrus.GetLevel())
	}
	if err := SetupLogger(Log{Level: "loud", Format: "text"}); err == nil {
		t.Error("expected error for bad level")
	}
	if err := SetupLogger(Log{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for bad format")
	}
	logrus.SetFormatter(&logrus.TextFormatter{})
}
