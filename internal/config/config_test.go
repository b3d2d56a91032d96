package config

import (
	"testing"
	"time"
)

func TestLoadParsesAdminsAndOrganizations(t *testing.T) {
	t.Setenv("IT_ADMIN_IDS", "11, 12")
	t.Setenv("AHO_ADMIN_IDS", "21")
	t.Setenv("ORGANIZATIONS", "Минфин, отдел 1; ЦБУ")
	t.Setenv("LISTING_DONE_WINDOW_HOURS", "24")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Admins.ITAdminIDs) != 2 || cfg.Admins.ITAdminIDs[1] != 12 || cfg.Admins.AHOAdminIDs[0] != 21 {
		t.Fatalf("unexpected admins %+v", cfg.Admins)
	}
	if len(cfg.Intake.Organizations) != 2 || cfg.Intake.Organizations[0] != "Минфин, отдел 1" {
		t.Fatalf("organizations must split on ';' only: %q", cfg.Intake.Organizations)
	}
	if cfg.Listing.DoneWindow() != 24*time.Hour {
		t.Fatalf("unexpected window %s", cfg.Listing.DoneWindow())
	}
}

func TestLoadRejectsBadAdminID(t *testing.T) {
	t.Setenv("IT_ADMIN_IDS", "11,abc")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed admin id")
	}
}

func TestValidateRequiresToken(t *testing.T) {
	cfg := &Config{App: AppConfig{Env: "development"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing token error")
	}
	cfg.Telegram.Token = "123:abc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	cfg.App.Env = "production"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("production without DSN should fail")
	}
}

func TestDefaults(t *testing.T) {
	if (ListingConfig{}).DoneWindow() != 48*time.Hour {
		t.Fatalf("default window should be 48h")
	}
	if (RedisConfig{}).SessionTTL() != 0 {
		t.Fatalf("non-positive TTL should disable expiry")
	}
	if got := (AppConfig{Host: "0.0.0.0", Port: "8080"}).Addr(); got != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %s", got)
	}
}
