package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "wtsync"

// Defaults for the recognized keys.
const (
	DefaultGitPath         = "git"
	DefaultLogLevel        = "info"
	DefaultTheme           = "mocha"
	DefaultDebounce        = 300 * time.Millisecond
	DefaultRefreshThrottle = 150 * time.Millisecond
	DefaultStartupGrace    = 2 * time.Second
	MaxStartupGrace        = 5 * time.Second
	DefaultMaxErrorLength  = 300
	DefaultWebBind         = "127.0.0.1"
)

// Config is the typed view of config.yaml. Zero values in the file fall back
// to the documented defaults via DefaultConfig and Validate.
type Config struct {
	GitPath  string         `yaml:"git_path"`
	LogLevel string         `yaml:"log_level"`
	Theme    string         `yaml:"theme"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Worktree WorktreeConfig `yaml:"worktree"`
	Cache    CacheConfig    `yaml:"cache"`
	Notify   NotifyConfig   `yaml:"notify"`
	Branch   BranchConfig   `yaml:"branch"`
	Web      WebConfig      `yaml:"web"`

	// ScanPaths are parent directories searched by `folders scan` when no
	// directory is given.
	ScanPaths []string `yaml:"scan_paths"`
}

// ProxyConfig values are injected into every git invocation when set.
type ProxyConfig struct {
	HTTP    string `yaml:"http"`
	HTTPS   string `yaml:"https"`
	NoProxy string `yaml:"no_proxy"`
}

type CheckoutConfig struct {
	IgnoreOtherWorktrees bool `yaml:"ignore_other_worktrees"`
}

type WorktreeConfig struct {
	// DefaultDir is the suggested parent for new worktrees. Relative values
	// resolve against the repository's main folder.
	DefaultDir        string   `yaml:"default_dir"`
	CopyInclude       []string `yaml:"copy_include"`
	CopyExclude       []string `yaml:"copy_exclude"`
	PostCreateCommand string   `yaml:"post_create_command"`
	SkipRemoteInList  bool     `yaml:"skip_remote_in_list"`
}

type CacheConfig struct {
	Debounce        time.Duration `yaml:"debounce"`
	RefreshThrottle time.Duration `yaml:"refresh_throttle"`
	StartupGrace    time.Duration `yaml:"startup_grace"`
}

type NotifyConfig struct {
	MinLevel       string `yaml:"min_level"`
	MaxErrorLength int    `yaml:"max_error_length"`
}

type BranchConfig struct {
	// Pointer so an explicit false survives defaulting.
	BackupBeforeForceDelete *bool `yaml:"backup_before_force_delete"`
}

// BackupEnabled reports whether a bundle is written before a forced delete.
func (b BranchConfig) BackupEnabled() bool {
	return b.BackupBeforeForceDelete == nil || *b.BackupBeforeForceDelete
}

type WebConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

func DefaultConfig() Config {
	return Config{
		GitPath:  DefaultGitPath,
		LogLevel: DefaultLogLevel,
		Theme:    DefaultTheme,
		Worktree: WorktreeConfig{
			DefaultDir:  "..",
			CopyExclude: []string{"**/node_modules/**", "**/.git/**"},
		},
		Cache: CacheConfig{
			Debounce:        DefaultDebounce,
			RefreshThrottle: DefaultRefreshThrottle,
			StartupGrace:    DefaultStartupGrace,
		},
		Notify: NotifyConfig{
			MinLevel:       "info",
			MaxErrorLength: DefaultMaxErrorLength,
		},
		Web: WebConfig{Bind: DefaultWebBind},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFromDir loads config.yaml from dir.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads and validates the file. A missing file yields defaults.
func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate fills empty values with defaults, clamps the startup grace window
// and rejects values that cannot be used.
func (c *Config) Validate() error {
	if c.GitPath == "" {
		c.GitPath = DefaultGitPath
	}
	if c.Theme == "" {
		c.Theme = DefaultTheme
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if !validLevel(c.LogLevel) {
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	if c.Notify.MinLevel == "" {
		c.Notify.MinLevel = "info"
	}
	if !validLevel(c.Notify.MinLevel) {
		return fmt.Errorf("notify.min_level: unknown level %q", c.Notify.MinLevel)
	}
	if c.Notify.MaxErrorLength <= 0 {
		c.Notify.MaxErrorLength = DefaultMaxErrorLength
	}

	if c.Cache.Debounce < 0 || c.Cache.RefreshThrottle < 0 {
		return fmt.Errorf("cache: negative durations are not allowed")
	}
	if c.Cache.Debounce == 0 {
		c.Cache.Debounce = DefaultDebounce
	}
	if c.Cache.RefreshThrottle == 0 {
		c.Cache.RefreshThrottle = DefaultRefreshThrottle
	}
	c.Cache.StartupGrace = min(max(c.Cache.StartupGrace, 0), MaxStartupGrace)

	for _, pattern := range append(append([]string{}, c.Worktree.CopyInclude...), c.Worktree.CopyExclude...) {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("worktree: empty copy pattern")
		}
	}

	if c.Web.Bind == "" {
		c.Web.Bind = DefaultWebBind
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port: %d out of range", c.Web.Port)
	}
	return nil
}

// ProxyEnv returns the proxy variables to inject, both upper and lower case
// since git and its helpers read either.
func (c *Config) ProxyEnv() []string {
	var env []string
	add := func(name, value string) {
		if value != "" {
			env = append(env, name+"="+value, strings.ToLower(name)+"="+value)
		}
	}
	add("HTTP_PROXY", c.Proxy.HTTP)
	add("HTTPS_PROXY", c.Proxy.HTTPS)
	add("NO_PROXY", c.Proxy.NoProxy)
	return env
}

// ResolveScanPaths expands a leading ~/ in each scan path and drops empty
// entries.
func (c *Config) ResolveScanPaths() []string {
	var out []string
	for _, p := range c.ScanPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

// WorktreeParent resolves worktree.default_dir against mainFolder.
func (c *Config) WorktreeParent(mainFolder string) string {
	dir := c.Worktree.DefaultDir
	if dir == "" {
		dir = ".."
	}
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Clean(filepath.Join(mainFolder, dir))
}

func validLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appName, "config.yaml")
	}

	return filepath.Join(home, ".config", appName, "config.yaml")
}

// DataDir returns the directory holding state, logs and the instance lock.
// An explicit dir wins; otherwise $XDG_STATE_HOME/wtsync or
// ~/.local/state/wtsync.
func DataDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "state", appName)
	}
	return filepath.Join(home, ".local", "state", appName)
}
