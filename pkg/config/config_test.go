package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Search.MatchThreshold != 0.1 {
		t.Errorf("MatchThreshold = %v, want 0.1", cfg.Search.MatchThreshold)
	}
	if cfg.Search.DefaultRecommendations != 5 {
		t.Errorf("DefaultRecommendations = %d, want 5", cfg.Search.DefaultRecommendations)
	}
	if !cfg.Search.ReportSubThresholdScore {
		t.Error("ReportSubThresholdScore should default to true")
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: 9999
search:
  matchThreshold: 0.25
  maxRecommendations: 20
cache:
  localTTL: 5s
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MD_SERVER_PORT", "7000")
	t.Setenv("MD_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("env override lost: port = %d", cfg.Server.Port)
	}
	if cfg.Search.MatchThreshold != 0.25 {
		t.Errorf("MatchThreshold = %v, want 0.25", cfg.Search.MatchThreshold)
	}
	if cfg.Search.MaxRecommendations != 20 {
		t.Errorf("MaxRecommendations = %d, want 20", cfg.Search.MaxRecommendations)
	}
	if cfg.Cache.LocalTTL != 5*time.Second {
		t.Errorf("LocalTTL = %v, want 5s", cfg.Cache.LocalTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Index.MatrixFile != "matrix.lvx" {
		t.Errorf("untouched default lost: MatrixFile = %q", cfg.Index.MatrixFile)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"threshold above one", func(c *Config) { c.Search.MatchThreshold = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.Search.MatchThreshold = -0.1 }, true},
		{"threshold zero", func(c *Config) { c.Search.MatchThreshold = 0 }, false},
		{"max below default", func(c *Config) { c.Search.MaxRecommendations = 2 }, true},
		{"no sample size", func(c *Config) { c.Search.MoodSampleSize = 0 }, true},
		{"missing artifact name", func(c *Config) { c.Index.CatalogFile = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestThresholdEnvOverride(t *testing.T) {
	t.Setenv("MD_SEARCH_MATCH_THRESHOLD", "0.3")
	t.Setenv("MD_SEARCH_REPORT_SUB_THRESHOLD_SCORE", "false")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.MatchThreshold != 0.3 {
		t.Errorf("MatchThreshold = %v", cfg.Search.MatchThreshold)
	}
	if cfg.Search.ReportSubThresholdScore {
		t.Error("ReportSubThresholdScore should be false")
	}
}
