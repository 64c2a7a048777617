package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func noEnvFiles() Options { return Options{EnvFiles: []string{}} }

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT__SECRETKEY", "")
	if _, err := Load(noEnvFiles()); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestLoadDefaultsFromEnvironment(t *testing.T) {
	t.Setenv("JWT__SECRETKEY", secret)

	s, err := Load(noEnvFiles())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Jwt.Issuer != "heartnote-api" || s.Jwt.Audience != "heartnote-clients" {
		t.Fatalf("unexpected issuer/audience: %q %q", s.Jwt.Issuer, s.Jwt.Audience)
	}
	if s.Jwt.AccessTTL != 7*24*time.Hour || s.Lockout.Cooldown != 15*time.Minute {
		t.Fatalf("unexpected durations: %v %v", s.Jwt.AccessTTL, s.Lockout.Cooldown)
	}
	if s.RateLimit.Backend != RateLimitMemory || s.Http.Addr != ":8080" {
		t.Fatalf("unexpected defaults: %+v %+v", s.RateLimit, s.Http)
	}

	cfg := s.AuthConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default settings must produce a valid config: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT__SECRETKEY", secret)
	t.Setenv("JWT__ISSUER", "other-issuer")
	t.Setenv("LOCKOUT__THRESHOLD", "3")
	t.Setenv("RATELIMIT__BACKEND", "Redis")
	t.Setenv("REDIS__ADDR", "localhost:6379")
	t.Setenv("KAFKA__BROKERS", "k1:9092,k2:9092")

	s, err := Load(noEnvFiles())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Jwt.Issuer != "other-issuer" || s.Lockout.Threshold != 3 {
		t.Fatalf("env overrides not applied: %+v %+v", s.Jwt, s.Lockout)
	}
	if s.RateLimit.Backend != RateLimitRedis {
		t.Fatalf("expected normalized backend, got %q", s.RateLimit.Backend)
	}
	if len(s.Kafka.Brokers) != 2 || s.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", s.Kafka.Brokers)
	}
}

func TestLoadRejectsRedisWithoutAddr(t *testing.T) {
	t.Setenv("JWT__SECRETKEY", secret)
	t.Setenv("RATELIMIT__BACKEND", "redis")
	t.Setenv("REDIS__ADDR", "")

	if _, err := Load(noEnvFiles()); err == nil {
		t.Fatal("expected error for redis backend without address")
	}
}

func TestLoadConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "authd.json")
	if err := os.WriteFile(cfgPath, []byte(`{"Jwt":{"Audience":"from-file"},"Http":{"Addr":":9999"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("JWT__SECRETKEY="+secret+"\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv never overrides variables that are already set.
	t.Setenv("JWT__SECRETKEY", "")
	os.Unsetenv("JWT__SECRETKEY")

	s, err := Load(Options{EnvFiles: []string{envPath, filepath.Join(dir, "missing.env")}, ConfigFile: cfgPath})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Jwt.SecretKey != secret {
		t.Fatal("expected secret from .env")
	}
	if s.Jwt.Audience != "from-file" || s.Http.Addr != ":9999" {
		t.Fatalf("config file not applied: %+v %+v", s.Jwt, s.Http)
	}
}
