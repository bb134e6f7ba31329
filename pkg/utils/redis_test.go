package utils

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitScriptInitialized(t *testing.T) {
	if rateLimitScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestAllowRate_ArgumentChecks(t *testing.T) {
	ctx := context.Background()
	if _, err := AllowRate(ctx, nil, "k", 5, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
