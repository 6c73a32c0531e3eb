package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Minimal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
account:
  username: alice
  password: secret
friend:
  username: bob
archive:
  dataDir: ` + dir + `
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Account.Username != "alice" {
		t.Errorf("expected alice, got %q", cfg.Account.Username)
	}
	if cfg.Sync.ReelPolicy != "skip" {
		t.Errorf("default reel policy should be skip, got %q", cfg.Sync.ReelPolicy)
	}
	if cfg.Sync.MaxItemsFirstRun != 50000 {
		t.Errorf("default first-run cap should be 50000, got %d", cfg.Sync.MaxItemsFirstRun)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DMTEST_PASSWORD", "hunter2")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
account:
  username: alice
  password: ${DMTEST_PASSWORD}
friend:
  username: bob
archive:
  dataDir: ` + dir + `
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Account.Password != "hunter2" {
		t.Errorf("env var not expanded, got %q", cfg.Account.Password)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	got := ExpandEnvVars("${DMTEST_UNSET_VAR:-fallback}")
	if got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestExpandEnvVars_UnsetNoDefault(t *testing.T) {
	got := ExpandEnvVars("${DMTEST_UNSET_VAR}")
	if got != "${DMTEST_UNSET_VAR}" {
		t.Errorf("unset var without default should stay literal, got %q", got)
	}
}

func TestValidate_BadReelPolicy(t *testing.T) {
	cfg := Defaults()
	cfg.Sync.ReelPolicy = "maybe"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for bad reel policy")
	}
}

func TestValidate_NotifyRequiresToken(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.Telegram.Enabled = true
	cfg.Notify.Telegram.ChatID = "123"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing telegram token")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := Defaults()
	cfg.Friend.Username = "bob"
	cfg.Archive.DataDir = dir
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Friend.Username != "bob" {
		t.Errorf("round trip lost friend username: %q", loaded.Friend.Username)
	}
}
