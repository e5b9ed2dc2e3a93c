package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/Cogwheel-Validator/spectra-bridge/planner/config"
)

// helper to reset env vars with PLANNER_ prefix between tests
func unsetPlannerEnv() {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "PLANNER_") {
			if idx := strings.Index(e, "="); idx != -1 {
				_ = os.Unsetenv(e[:idx])
			}
		}
	}
}

// chdirTemp runs the test in an empty dir so godotenv.Load() finds no .env file
func chdirTemp(t *testing.T) {
	t.Helper()
	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	_ = os.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner_server.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing temp config: %v", err)
	}
	return path
}

func TestLoadPlannerServerConfig_FromEnv_Success(t *testing.T) {
	unsetPlannerEnv()
	chdirTemp(t)
	t.Setenv("PLANNER_PORT", "8080")
	t.Setenv("PLANNER_HOST", "0.0.0.0")
	t.Setenv("PLANNER_ALLOWED_ORIGINS", "*")
	t.Setenv("PLANNER_SOCKET_API_KEY", "secret")
	t.Setenv("PLANNER_SOCKET_URLS", "https://socket.example.com/v2,https://backup.example.com/v2")
	t.Setenv("PLANNER_STRATEGY", "exhaustive_subset")

	cfg, err := LoadPlannerServerConfig(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8080 || cfg.Host != "0.0.0.0" {
		t.Errorf("unexpected port/host: %v %v", cfg.Port, cfg.Host)
	}
	if cfg.SocketAPIKey != "secret" {
		t.Errorf("unexpected socket api key %q", cfg.SocketAPIKey)
	}
	if len(cfg.SocketURLs) != 2 {
		t.Errorf("expected 2 socket urls, got %d", len(cfg.SocketURLs))
	}
	if cfg.Strategy != "exhaustive_subset" {
		t.Errorf("unexpected strategy %q", cfg.Strategy)
	}
}

func TestLoadPlannerServerConfig_Defaults(t *testing.T) {
	unsetPlannerEnv()
	chdirTemp(t)
	t.Setenv("PLANNER_ALLOWED_ORIGINS", "*")

	cfg, err := LoadPlannerServerConfig(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.CacheBackend != "memory" || cfg.CacheTTL() != 300*time.Second {
		t.Errorf("unexpected cache defaults: %s %v", cfg.CacheBackend, cfg.CacheTTL())
	}
	if cfg.Strategy != "greedy_by_balance" {
		t.Errorf("unexpected default strategy %q", cfg.Strategy)
	}
	if cfg.ExhaustiveMaxCandidates != 8 {
		t.Errorf("unexpected exhaustive ceiling %d", cfg.ExhaustiveMaxCandidates)
	}
	if cfg.Dust().String() != "0.1" {
		t.Errorf("unexpected dust threshold %s", cfg.Dust())
	}
	if cfg.BalanceAttempts != 3 || cfg.BalanceTimeout() != 15*time.Second {
		t.Errorf("unexpected balance defaults: %d %v", cfg.BalanceAttempts, cfg.BalanceTimeout())
	}
	if len(cfg.SocketURLs) != 1 {
		t.Errorf("expected the default socket url, got %v", cfg.SocketURLs)
	}
	if cfg.StaticBalanceMap() != nil {
		t.Errorf("static balances should be off by default")
	}
}

func TestLoadPlannerServerConfig_FromEnv_FailVerification(t *testing.T) {
	unsetPlannerEnv()
	chdirTemp(t)

	// redis backend without a url
	t.Setenv("PLANNER_ALLOWED_ORIGINS", "*")
	t.Setenv("PLANNER_CACHE_BACKEND", "redis")

	_, err := LoadPlannerServerConfig(nil)
	if err == nil {
		t.Fatalf("expected error due to missing redis url, got nil")
	}
}

func TestLoadPlannerServerConfig_FromFile_Success(t *testing.T) {
	unsetPlannerEnv()

	path := writeConfig(t, `
port = 9090
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
cache_backend = "redis"
redis_url = "redis://localhost:6379/0"
strategy = "proportional_split"
dust_threshold = "0.25"
chain_config_path = "generated_configs/planner_config.json"

[static_balances]
polygon = "10"
arbitrum = "150.5"
`)

	cfg, err := LoadPlannerServerConfig(&path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 9090 || cfg.Host != "127.0.0.1" {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("unexpected allowed origins: %+v", cfg.AllowedOrigins)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("unexpected redis url %q", cfg.RedisURL)
	}
	if cfg.Dust().String() != "0.25" {
		t.Errorf("unexpected dust %s", cfg.Dust())
	}
	balances := cfg.StaticBalanceMap()
	if len(balances) != 2 || balances["arbitrum"].String() != "150.5" {
		t.Errorf("unexpected static balances %v", balances)
	}
}

func TestLoadPlannerServerConfig_FromFile_Invalid(t *testing.T) {
	unsetPlannerEnv()

	cases := map[string]string{
		"unknown strategy": `
allowed_origins = ["*"]
strategy = "random"
`,
		"negative dust": `
allowed_origins = ["*"]
dust_threshold = "-1"
`,
		"ceiling too large": `
allowed_origins = ["*"]
exhaustive_max_candidates = 64
`,
		"bad static balance": `
allowed_origins = ["*"]

[static_balances]
polygon = "lots"
`,
		"no attempts": `
allowed_origins = ["*"]
balance_attempts = 0
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, content)
			if _, err := LoadPlannerServerConfig(&path); err == nil {
				t.Fatalf("expected verification error")
			}
		})
	}
}

func TestLoadPlannerServerConfig_FromFile_WrongExtension(t *testing.T) {
	unsetPlannerEnv()
	p := "config.yaml"
	_, err := LoadPlannerServerConfig(&p)
	if err == nil {
		t.Fatalf("expected error for non-toml file")
	}
}

func TestLoadPlannerServerConfig_FileOverridesEnv(t *testing.T) {
	unsetPlannerEnv()
	// set env with different values
	t.Setenv("PLANNER_PORT", "8000")
	t.Setenv("PLANNER_HOST", "0.0.0.0")
	t.Setenv("PLANNER_ALLOWED_ORIGINS", "*")

	path := writeConfig(t, `
port = 7000
host = "1.2.3.4"
allowed_origins = ["https://a.com"]
`)
	cfg, err := LoadPlannerServerConfig(&path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7000 || cfg.Host != "1.2.3.4" {
		t.Errorf("expected file values to be used, got: %+v", cfg)
	}
}
