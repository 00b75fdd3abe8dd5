package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty allows all", "", nil},
		{"single", "https://exam.example.com", []string{"https://exam.example.com"}},
		{"trims and skips blanks", " https://a.test , ,https://b.test ", []string{"https://a.test", "https://b.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parseOrigins(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("POOL_CACHE_TTL_MINUTES", "3")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg := Load()

	if cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverMemory)
	}
	if cfg.PoolCacheTTL != 3*time.Minute {
		t.Errorf("PoolCacheTTL = %v, want 3m", cfg.PoolCacheTTL)
	}
	if cfg.RateLimit != 120 {
		t.Errorf("RateLimit = %d, want fallback 120", cfg.RateLimit)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ExamPoolKey("abc"); got != "exam:abc:pool" {
		t.Fatalf("ExamPoolKey = %q", got)
	}
}
