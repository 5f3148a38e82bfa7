package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/geodensify/internal/domain"
)

func validConfig() Config {
	return Config{
		Server:  ServerConfig{Host: "localhost", Port: 8080},
		Storage: StorageConfig{Type: "local", LocalPath: "./data"},
		Output:  OutputConfig{Dir: "./output"},
		Densify: DensifyConfig{
			Ellipsoid: "WGS84",
			Mode:      "spacing",
			Spacing:   900,
			Segments:  10,
			Strategy:  "leading",
		},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != "local" {
		t.Errorf("Storage.Type = %q, want local", cfg.Storage.Type)
	}
	if cfg.Densify.Spacing != domain.DefaultSpacing {
		t.Errorf("Densify.Spacing = %v, want %v", cfg.Densify.Spacing, domain.DefaultSpacing)
	}
	if !cfg.Densify.Auto {
		t.Error("Densify.Auto should default to true")
	}
	if cfg.Sync.Interval != 15*time.Minute {
		t.Errorf("Sync.Interval = %v, want 15m", cfg.Sync.Interval)
	}
	if cfg.Output.Publishes() {
		t.Error("output should not be published by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("GEODENSIFY_DENSIFY_SPACING", "250")
	t.Setenv("GEODENSIFY_DENSIFY_STRATEGY", "symmetrical")
	t.Setenv("GEODENSIFY_DENSIFY_ELLIPSOID", "GRS80")
	t.Setenv("GEODENSIFY_SERVER_PORT", "9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}

	req, err := cfg.Densify.Request()
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if req.Ellipsoid != domain.EllipsoidGRS80 {
		t.Errorf("Ellipsoid = %v, want GRS80", req.Ellipsoid)
	}
	if req.Policy.Spacing != 250 || req.Policy.Strategy != domain.StrategySymmetrical {
		t.Errorf("Policy = %+v", req.Policy)
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "geodensify.yaml")
	content := `
densify:
  mode: count
  segments: 4
output:
  dir: ` + filepath.Join(dir, "out") + `
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Densify.Mode != "count" || cfg.Densify.Segments != 4 {
		t.Errorf("Densify = %+v", cfg.Densify)
	}
	if cfg.Output.Dir != filepath.Join(dir, "out") {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}
}

func TestLoadInvalid(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("GEODENSIFY_DENSIFY_SPACING", "-1")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for negative spacing")
	}
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("GEODENSIFY_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEODENSIFY_TEST_DOTENV", "")
	os.Unsetenv("GEODENSIFY_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("GEODENSIFY_TEST_DOTENV"); got != "loaded" {
		t.Errorf("GEODENSIFY_TEST_DOTENV = %q, want loaded", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid metrics port", func(c *Config) { c.Metrics.Port = 70000 }, "metrics.port"},
		{"TLS without domains", func(c *Config) { c.TLS.Enabled = true; c.TLS.Email = "ops@example.com" }, "tls.domains"},
		{"TLS without email", func(c *Config) { c.TLS.Enabled = true; c.TLS.Domains = []string{"example.com"} }, "tls.email"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "storage.type"},
		{"local without path", func(c *Config) { c.Storage.LocalPath = "" }, "storage.local_path"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3"; c.Storage.S3.Region = "eu-central-1" }, "storage.s3.bucket"},
		{"s3 without region", func(c *Config) { c.Storage.Type = "s3"; c.Storage.S3.Bucket = "b" }, "storage.s3.region"},
		{"azure without account", func(c *Config) { c.Storage.Type = "azure"; c.Storage.Azure.Container = "c" }, "storage.azure.account_name"},
		{"http without base url", func(c *Config) { c.Storage.Type = "http" }, "storage.http.base_url"},
		{"missing output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"invalid output storage", func(c *Config) { c.Output.Storage.Type = "s3" }, "output.storage.s3.bucket"},
		{"unknown ellipsoid", func(c *Config) { c.Densify.Ellipsoid = "Bessel" }, "densify.ellipsoid"},
		{"unknown mode", func(c *Config) { c.Densify.Mode = "fast" }, "densify.mode"},
		{"negative workers", func(c *Config) { c.Densify.Workers = -1 }, "densify.workers"},
		{"sync interval too short", func(c *Config) { c.Sync.Enabled = true; c.Sync.Interval = time.Second }, "sync.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.wantErr {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantErr)
			}
		})
	}
}

func TestDensifyConfigRequest(t *testing.T) {
	t.Run("preset", func(t *testing.T) {
		c := validConfig().Densify
		c.Ellipsoid = "clarke 1858"
		req, err := c.Request()
		if err != nil {
			t.Fatal(err)
		}
		if req.Ellipsoid != domain.EllipsoidClarke1858 {
			t.Errorf("Ellipsoid = %v", req.Ellipsoid)
		}
		if req.Policy != domain.DefaultPolicy() {
			t.Errorf("Policy = %+v, want default", req.Policy)
		}
	})

	t.Run("custom ellipsoid overrides preset", func(t *testing.T) {
		c := validConfig().Densify
		c.Ellipsoid = "unknown"
		c.A = 6378137
		c.InvFlattening = 298.257222100882711243
		req, err := c.Request()
		if err != nil {
			t.Fatal(err)
		}
		if req.Ellipsoid.Name != "custom" || req.Ellipsoid.A != 6378137 {
			t.Errorf("Ellipsoid = %+v", req.Ellipsoid)
		}
	})

	t.Run("invalid custom ellipsoid", func(t *testing.T) {
		c := validConfig().Densify
		c.A = 6378137
		c.InvFlattening = 0.5
		if _, err := c.Request(); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("count mode", func(t *testing.T) {
		c := validConfig().Densify
		c.Mode = "count"
		c.Segments = 3
		req, err := c.Request()
		if err != nil {
			t.Fatal(err)
		}
		if req.Policy.Mode != domain.ModeCount || req.Policy.SegmentCount(1) != 3 {
			t.Errorf("Policy = %+v", req.Policy)
		}
	})
}

func TestServerAddress(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8443}
	if got := c.Address(); got != "127.0.0.1:8443" {
		t.Errorf("Address() = %q", got)
	}
}
