package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.BasePath != "/v1" {
		t.Fatalf("unexpected defaults: %+v", cfg.Server)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	data := []byte("server:\n  addr: \":9090\"\nlog:\n  pretty: true\n")
	if err := os.WriteFile(filepath.Join(dir, "taskman.yml"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr not overridden: %s", cfg.Server.Addr)
	}
	if cfg.Server.BasePath != "/v1" || cfg.Log.Level != "info" {
		t.Fatalf("omitted fields lost defaults: %+v", cfg)
	}
	if !cfg.Log.Pretty {
		t.Fatalf("pretty flag not read")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		ok   bool
	}{
		{"bad base path", "server:\n  base_path: v1\n", false},
		{"bad log level", "log:\n  level: loud\n", false},
		{"valid", "server:\n  addr: \":7000\"\nlog:\n  level: debug\n", true},
		{"not yaml", "server: [", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := FromYAML([]byte(c.yaml))
			if c.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !c.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
