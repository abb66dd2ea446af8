package config

import (
	"strings"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	got := Load("/nonexistent/path/config.yaml")
	want := Default()
	if got.ListenAddr != want.ListenAddr || got.Strategy != want.Strategy {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestParseMalformedYAMLFallsBackToDefaults(t *testing.T) {
	got := parse(strings.NewReader("not: [valid: yaml"))
	if got.Strategy != Default().Strategy {
		t.Fatalf("expected default strategy on malformed yaml, got %s", got.Strategy)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	yamlDoc := "listen_addr: 127.0.0.1:9000\nstrategy: hybrid\nmin_replicas: 5\n"
	got := parse(strings.NewReader(yamlDoc))
	if got.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("expected overridden listen_addr, got %s", got.ListenAddr)
	}
	if got.Strategy != "hybrid" {
		t.Fatalf("expected overridden strategy, got %s", got.Strategy)
	}
	if got.MinReplicas != 5 {
		t.Fatalf("expected overridden min_replicas, got %d", got.MinReplicas)
	}
}
