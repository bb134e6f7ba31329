package config

import (
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "kasrt"},
		Auth: AuthConfig{JWTSecret: testSecret},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "kasrt"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h token default, got %v", c.Auth.TokenTTL)
	}
	if c.Auth.RateLimit != 5 || c.Auth.RateWindow != time.Minute {
		t.Fatalf("expected 5/min auth rate default, got %d/%v", c.Auth.RateLimit, c.Auth.RateWindow)
	}
}

func TestValidate_RedisOptional(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("redis should be optional: %v", err)
	}
	if addr := c.RedisAddr(); addr != "" {
		t.Fatalf("expected empty redis addr, got %q", addr)
	}

	c = validConfig()
	c.Redis = RedisConfig{Host: "localhost"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis host without port")
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	c := validConfig()
	c.Auth.JWTSecret = "short"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for short JWT secret")
	}
}
