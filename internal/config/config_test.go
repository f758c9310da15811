package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServiceName != "goasic" {
		t.Errorf("Expected service name 'goasic', got %q", cfg.ServiceName)
	}

	if cfg.ChainCount != 1 {
		t.Errorf("Expected chain count 1, got %d", cfg.ChainCount)
	}

	if cfg.MidstateCount != 4 {
		t.Errorf("Expected midstate count 4, got %d", cfg.MidstateCount)
	}

	if len(cfg.JobFeedEndpoints) != 1 {
		t.Errorf("Expected one job feed endpoint, got %v", cfg.JobFeedEndpoints)
	}

	if cfg.QuotaInterval != time.Second {
		t.Errorf("Expected quota interval 1s, got %v", cfg.QuotaInterval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHAIN_COUNT", "3")
	t.Setenv("MIDSTATE_COUNT", "2")
	t.Setenv("JOBFEED_ENDPOINTS", "tcp://pool-a:29555, tcp://pool-b:29555")
	t.Setenv("QUOTA_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ChainCount != 3 {
		t.Errorf("Expected chain count 3, got %d", cfg.ChainCount)
	}

	if cfg.MidstateCount != 2 {
		t.Errorf("Expected midstate count 2, got %d", cfg.MidstateCount)
	}

	want := []string{"tcp://pool-a:29555", "tcp://pool-b:29555"}
	if len(cfg.JobFeedEndpoints) != 2 || cfg.JobFeedEndpoints[0] != want[0] || cfg.JobFeedEndpoints[1] != want[1] {
		t.Errorf("Expected endpoints %v, got %v", want, cfg.JobFeedEndpoints)
	}

	if cfg.QuotaInterval != 250*time.Millisecond {
		t.Errorf("Expected quota interval 250ms, got %v", cfg.QuotaInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero chains", func(c *Config) { c.ChainCount = 0 }, true},
		{"midstates not power of two", func(c *Config) { c.MidstateCount = 3 }, true},
		{"zero midstates", func(c *Config) { c.MidstateCount = 0 }, true},
		{"no endpoints", func(c *Config) { c.JobFeedEndpoints = nil }, true},
		{"empty service name", func(c *Config) { c.ServiceName = "" }, true},
		{"zero quota interval", func(c *Config) { c.QuotaInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				ServiceName:      "test",
				ChainCount:       1,
				MidstateCount:    4,
				MockChipCount:    8,
				JobFeedEndpoints: []string{"tcp://localhost:29555"},
				QuotaInterval:    time.Second,
			}
			tt.mutate(cfg)

			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
