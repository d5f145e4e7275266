package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load for fields the config file leaves unset.
const (
	DefaultSocketPermissions Mode = 0o666
	DefaultSocketOwner            = "root:root"
	DefaultHomesRoot              = "/homes/"
	DefaultHomePermissions   Mode = 0o700
	DefaultShell                  = "/usr/bin/bash"
	DefaultTimeoutSeconds         = 10
	DefaultCacheSize              = 100
)

// Config is the daemon configuration, loaded once at startup.
type Config struct {
	General  GeneralConfig `yaml:"general"`
	GitLab   GitLabConfig  `yaml:"gitlab"`
	NSS      NSSConfig     `yaml:"nss"`
	LogLevel string        `yaml:"log_level"`
}

type GeneralConfig struct {
	SocketPath        string `yaml:"socket_path"`
	SocketPermissions Mode   `yaml:"socket_permissions"`
	SocketOwner       string `yaml:"socket_owner"`
}

type GitLabConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token,omitempty"`
	// TokenFile is read when Token is empty. Relative paths are resolved
	// next to the config file.
	TokenFile      string `yaml:"token_file,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// NSSConfig carries the settings shared with the NSS shim. The daemon itself
// only consumes PrimaryGroup, the cache sizes and GroupMapping; the rest is
// loaded so one file configures both sides.
type NSSConfig struct {
	HomesRoot       string            `yaml:"homes_root"`
	HomePermissions Mode              `yaml:"home_permissions"`
	UIDOffset       uint32            `yaml:"uid_offset"`
	GIDOffset       uint32            `yaml:"gid_offset"`
	GroupPrefix     string            `yaml:"group_prefix"`
	Shell           string            `yaml:"shell"`
	PrimaryGroup    string            `yaml:"primary_group"`
	UserCacheSize   int               `yaml:"user_cachesize"`
	GroupCacheSize  int               `yaml:"group_cachesize"`
	GroupMapping    map[string]string `yaml:"group_mapping"`
}

// Mode is a permission-bits field. It accepts a YAML integer (0666 and 0o666
// both resolve as octal) or a quoted octal string ("0666").
type Mode uint32

func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	var n uint32
	if err := value.Decode(&n); err == nil {
		*m = Mode(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid permission bits %q", value.Value)
	}
	bits, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return fmt.Errorf("invalid permission bits %q: %v", s, err)
	}
	*m = Mode(bits)
	return nil
}

// FileMode converts the bits for use with os.Chmod.
func (m Mode) FileMode() os.FileMode {
	return os.FileMode(m)
}

// Owner splits the configured "user:group" socket owner. A bare user name
// doubles as the group name.
func (g *GeneralConfig) Owner() (string, string) {
	owner, group, ok := strings.Cut(g.SocketOwner, ":")
	if !ok {
		return owner, owner
	}
	return owner, group
}

// Load reads and validates the daemon configuration from path, applying
// defaults and resolving the GitLab token file if one is configured.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.applyDefaults()

	if cfg.GitLab.BaseURL == "" {
		return nil, fmt.Errorf("gitlab.base_url is required")
	}

	if cfg.GitLab.Token == "" && cfg.GitLab.TokenFile != "" {
		tokenPath := cfg.GitLab.TokenFile
		if !filepath.IsAbs(tokenPath) {
			tokenPath = filepath.Join(filepath.Dir(path), tokenPath)
		}
		token, err := readSecret(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read gitlab token from %s: %w", tokenPath, err)
		}
		cfg.GitLab.Token = token
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.General.SocketPath == "" {
		c.General.SocketPath = SocketPath
	}
	if c.General.SocketPermissions == 0 {
		c.General.SocketPermissions = DefaultSocketPermissions
	}
	if c.General.SocketOwner == "" {
		c.General.SocketOwner = DefaultSocketOwner
	}
	if c.GitLab.TimeoutSeconds == 0 {
		c.GitLab.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.NSS.HomesRoot == "" {
		c.NSS.HomesRoot = DefaultHomesRoot
	}
	if c.NSS.HomePermissions == 0 {
		c.NSS.HomePermissions = DefaultHomePermissions
	}
	if c.NSS.Shell == "" {
		c.NSS.Shell = DefaultShell
	}
	if c.NSS.UserCacheSize == 0 {
		c.NSS.UserCacheSize = DefaultCacheSize
	}
	if c.NSS.GroupCacheSize == 0 {
		c.NSS.GroupCacheSize = DefaultCacheSize
	}
}

// readSecret returns the first line of the file at path, trimmed.
func readSecret(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		secret := strings.TrimSpace(scanner.Text())
		if secret != "" {
			return secret, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("secret file is empty")
}
