package config

import (
	"net/http"
	"testing"
	"time"
)

func envFrom(values map[string]string) func(key, fallback string) string {
	return func(key, fallback string) string {
		if v, ok := values[key]; ok {
			return v
		}
		return fallback
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := fromEnv(envFrom(map[string]string{"JWT_ACCESS_SECRET": "secret"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetStoreDriver() != StoreDriverFile {
		t.Errorf("expected file driver, got %s", cfg.GetStoreDriver())
	}
	if cfg.GetSessionTTL() != 12*time.Hour {
		t.Errorf("expected 12h session ttl, got %s", cfg.GetSessionTTL())
	}
	if cfg.GetSessionCookieSameSite() != http.SameSiteLaxMode {
		t.Errorf("expected lax same-site")
	}
	if cfg.GetEmailEnabled() {
		t.Errorf("email should be disabled without SMTP_HOST")
	}
	if cfg.IsKafkaEnabled() {
		t.Errorf("kafka should be disabled without brokers")
	}
	if cfg.GetDefaultPhoneRegion() != "VN" {
		t.Errorf("unexpected phone region %s", cfg.GetDefaultPhoneRegion())
	}
}

func TestFromEnvRejectsInvalidCombinations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"postgres without url", map[string]string{"JWT_ACCESS_SECRET": "s", "STORE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"JWT_ACCESS_SECRET": "s", "STORE_DRIVER": "mysql"}},
		{"minio snapshot without endpoint", map[string]string{"JWT_ACCESS_SECRET": "s", "STORE_SNAPSHOT_TARGET": "minio"}},
		{"wildcard cors with credentials", map[string]string{"JWT_ACCESS_SECRET": "s", "CORS_ORIGINS": "*"}},
		{"smtp without from address", map[string]string{"JWT_ACCESS_SECRET": "s", "SMTP_HOST": "smtp.local"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fromEnv(envFrom(tt.env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFromEnvKafkaBrokers(t *testing.T) {
	cfg, err := fromEnv(envFrom(map[string]string{
		"JWT_ACCESS_SECRET": "s",
		"KAFKA_BROKERS":     "k1:9092, k2:9092 ,",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.GetKafkaBrokers(); len(got) != 2 || got[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}
