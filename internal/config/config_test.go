package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("missing")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 5002 || cfg.Mode != "release" || cfg.Cluster.Transport != "local" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Cluster.ResourceTimeout != time.Second || cfg.Cluster.CallTimeout != 5*time.Second {
		t.Errorf("cluster timeouts %+v", cfg.Cluster)
	}
	if cfg.NodeID == "" {
		t.Error("node id must default to the hostname")
	}
	if len(cfg.WebRTC.STUNServers) == 0 {
		t.Error("default STUN server missing")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `
mode: debug
port: 7000
node_id: node-7
cluster:
  resource_timeout: 250ms
webrtc:
  port_min: 40000
  port_max: 40100
`
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("CONDUCTOR_HLS_OUTPUT_DIR", "/tmp/hls")

	cfg, err := Load("test")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "debug" || cfg.Port != 7000 || cfg.NodeID != "node-7" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Cluster.ResourceTimeout != 250*time.Millisecond {
		t.Errorf("resource timeout %v", cfg.Cluster.ResourceTimeout)
	}
	if cfg.WebRTC.PortMin != 40000 || cfg.WebRTC.PortMax != 40100 {
		t.Errorf("port range %d-%d", cfg.WebRTC.PortMin, cfg.WebRTC.PortMax)
	}
	if cfg.HLS.OutputDir != "/tmp/hls" {
		t.Errorf("env override ignored, output dir %q", cfg.HLS.OutputDir)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"redis without address", map[string]string{"CONDUCTOR_CLUSTER_TRANSPORT": "redis"}},
		{"unknown transport", map[string]string{"CONDUCTOR_CLUSTER_TRANSPORT": "carrier-pigeon"}},
		{"bad mode", map[string]string{"CONDUCTOR_MODE": "turbo"}},
		{"ttl below heartbeat", map[string]string{"CONDUCTOR_CLUSTER_MEMBER_TTL": "1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load("missing"); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
