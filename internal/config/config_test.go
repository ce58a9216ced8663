package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AllowSignup {
		t.Fatalf("expected signup to be disabled by default")
	}
}

func TestLoadParsesNumbersAndFlags(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "-5")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "60")
	t.Setenv("ALLOW_SIGNUP", "true")
	t.Setenv("DB_AUTO_MIGRATE", "not-a-bool")

	cfg := Load()
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if cfg.RedisDB != 3 || cfg.AccessTokenTTLMinutes != 60 {
		t.Fatalf("unexpected numeric config %+v", cfg)
	}
	if cfg.ReportCacheTTLSeconds != 300 {
		t.Fatalf("expected invalid ttl to fall back to 300, got %d", cfg.ReportCacheTTLSeconds)
	}
	if !cfg.AllowSignup || cfg.DBAutoMigrate {
		t.Fatalf("unexpected flags signup=%v migrate=%v", cfg.AllowSignup, cfg.DBAutoMigrate)
	}
}
