package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return dir
}

func TestLoadFromDir_Missing(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if cfg.GitPath != "git" || cfg.Theme != "mocha" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Cache.Debounce != 300*time.Millisecond {
		t.Errorf("Cache.Debounce = %v, want 300ms", cfg.Cache.Debounce)
	}
	if cfg.Cache.RefreshThrottle != 150*time.Millisecond {
		t.Errorf("Cache.RefreshThrottle = %v, want 150ms", cfg.Cache.RefreshThrottle)
	}
	if cfg.Cache.StartupGrace != 2*time.Second {
		t.Errorf("Cache.StartupGrace = %v, want 2s", cfg.Cache.StartupGrace)
	}
	if !cfg.Branch.BackupEnabled() {
		t.Error("BackupEnabled() should default to true")
	}
	if !slices.Contains(cfg.Worktree.CopyExclude, "**/node_modules/**") {
		t.Errorf("CopyExclude = %v", cfg.Worktree.CopyExclude)
	}
}

func TestLoadFullConfig(t *testing.T) {
	dir := writeConfig(t, `
git_path: /usr/local/bin/git
log_level: debug
theme: latte
proxy:
  https: http://proxy:3128
checkout:
  ignore_other_worktrees: true
worktree:
  default_dir: ~/worktrees
  copy_include: [".env", "**/.env.local"]
  post_create_command: npm ci
cache:
  debounce: 1s
  startup_grace: 10s
notify:
  min_level: warn
  max_error_length: 80
branch:
  backup_before_force_delete: false
web:
  port: 7777
`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}

	if cfg.GitPath != "/usr/local/bin/git" {
		t.Errorf("GitPath = %q", cfg.GitPath)
	}
	if !cfg.Checkout.IgnoreOtherWorktrees {
		t.Error("IgnoreOtherWorktrees should be true")
	}
	if cfg.Cache.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Cache.Debounce)
	}
	if cfg.Cache.StartupGrace != MaxStartupGrace {
		t.Errorf("StartupGrace = %v, want clamp to %v", cfg.Cache.StartupGrace, MaxStartupGrace)
	}
	if cfg.Cache.RefreshThrottle != DefaultRefreshThrottle {
		t.Errorf("RefreshThrottle = %v, want default", cfg.Cache.RefreshThrottle)
	}
	if cfg.Notify.MaxErrorLength != 80 || cfg.Notify.MinLevel != "warn" {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Branch.BackupEnabled() {
		t.Error("BackupEnabled() should honour explicit false")
	}
	if len(cfg.Worktree.CopyInclude) != 2 || cfg.Worktree.PostCreateCommand != "npm ci" {
		t.Errorf("Worktree = %+v", cfg.Worktree)
	}
	if cfg.Web.Port != 7777 || cfg.Web.Bind != DefaultWebBind {
		t.Errorf("Web = %+v", cfg.Web)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "theme: [unclosed"},
		{"unknown log level", "log_level: loud"},
		{"unknown notify level", "notify:\n  min_level: chatty"},
		{"negative debounce", "cache:\n  debounce: -1s"},
		{"port out of range", "web:\n  port: 70000"},
		{"empty copy pattern", "worktree:\n  copy_include: ['']"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFromDir(writeConfig(t, tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestValidate_NegativeGraceClampsToZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.StartupGrace = -time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Cache.StartupGrace != 0 {
		t.Errorf("StartupGrace = %v, want 0", cfg.Cache.StartupGrace)
	}
}

func TestProxyEnv(t *testing.T) {
	cfg := DefaultConfig()
	if env := cfg.ProxyEnv(); len(env) != 0 {
		t.Errorf("ProxyEnv() = %v, want empty", env)
	}

	cfg.Proxy = ProxyConfig{HTTPS: "http://p:1", NoProxy: "localhost"}
	got := cfg.ProxyEnv()
	want := []string{"HTTPS_PROXY=http://p:1", "https_proxy=http://p:1", "NO_PROXY=localhost", "no_proxy=localhost"}
	if !slices.Equal(got, want) {
		t.Errorf("ProxyEnv() = %v, want %v", got, want)
	}
}

func TestWorktreeParent(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"", "/src"},
		{"..", "/src"},
		{".worktrees", "/src/repo/.worktrees"},
		{"/abs/trees", "/abs/trees"},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			cfg := Config{Worktree: WorktreeConfig{DefaultDir: tt.dir}}
			if got := cfg.WorktreeParent("/src/repo"); got != filepath.FromSlash(tt.want) {
				t.Errorf("WorktreeParent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDataDir(t *testing.T) {
	if got := DataDir("/explicit"); got != "/explicit" {
		t.Errorf("DataDir(explicit) = %q", got)
	}
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	if got := DataDir(""); got != filepath.Join("/xdg/state", "wtsync") {
		t.Errorf("DataDir() = %q", got)
	}
}

func TestResolveScanPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := Config{ScanPaths: []string{"~/src", " ", "/opt/code/"}}
	got := cfg.ResolveScanPaths()
	want := []string{filepath.Join(home, "src"), filepath.Clean("/opt/code/")}
	if !slices.Equal(got, want) {
		t.Errorf("ResolveScanPaths() = %v, want %v", got, want)
	}
}
