package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7433"
	DefaultListenAddr = "127.0.0.1:7433"
	DefaultDBFileName = ".dublett.db"
	DefaultBlobDir    = ".dublett-blobs"
	DefaultLogLevel   = "info"

	DefaultMaxUploadBytes     int64 = 100 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024

	DefaultLockWaitMS          = 5000
	DefaultClaimTimeoutMinutes = 15
	DefaultCandidateLimit      = 5000

	configFileName           = ".dublett.toml"
	configDirEnvKey          = "DUBLETT_CONFIG_DIR"
	trustProjectConfigEnvKey = "DUBLETT_TRUST_PROJECT_CONFIG"
)

// EngineConfig tunes duplicate detection and resolution.
type EngineConfig struct {
	LockWaitMS          int    `toml:"lock_wait_ms"`
	ClaimTimeoutMinutes int    `toml:"claim_timeout_minutes"`
	CandidateLimit      int    `toml:"candidate_limit"`
	PolicyPath          string `toml:"policy_path"`
}

// UploadConfig bounds document ingestion.
type UploadConfig struct {
	MaxUploadBytes     int64 `toml:"max_upload_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
}

// ServerConfig defines runtime configuration for the HTTP server.
type ServerConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	AdminTokenHash string `toml:"admin_token_hash"`
}

// Config defines runtime configuration for dublett.
type Config struct {
	APIURL                   string       `toml:"api_url"`
	DBPath                   string       `toml:"db_path"`
	BlobRoot                 string       `toml:"blob_root"`
	LogLevel                 string       `toml:"log_level"`
	Engine                   EngineConfig `toml:"engine"`
	Uploads                  UploadConfig `toml:"uploads"`
	Server                   ServerConfig `toml:"server"`
	TrustedProjectConfigPath string       `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		BlobRoot: "",
		LogLevel: DefaultLogLevel,
		Engine: EngineConfig{
			LockWaitMS:          DefaultLockWaitMS,
			ClaimTimeoutMinutes: DefaultClaimTimeoutMinutes,
			CandidateLimit:      DefaultCandidateLimit,
		},
		Uploads: UploadConfig{
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr,
		},
	}
}

// LockWait returns the configured scope-lock wait as a duration.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Engine.LockWaitMS) * time.Millisecond
}

// ClaimTimeout returns the configured claim timeout as a duration.
func (c *Config) ClaimTimeout() time.Duration {
	return time.Duration(c.Engine.ClaimTimeoutMinutes) * time.Minute
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"blob_root",
	"log_level",
	"engine.lock_wait_ms",
	"engine.claim_timeout_minutes",
	"engine.candidate_limit",
	"engine.policy_path",
	"uploads.max_upload_bytes",
	"uploads.multipart_max_memory",
	"server.listen_addr",
	"server.admin_token_hash",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "blob_root":
		return c.BlobRoot, nil
	case "log_level":
		return c.LogLevel, nil
	case "engine.lock_wait_ms":
		return strconv.Itoa(c.Engine.LockWaitMS), nil
	case "engine.claim_timeout_minutes":
		return strconv.Itoa(c.Engine.ClaimTimeoutMinutes), nil
	case "engine.candidate_limit":
		return strconv.Itoa(c.Engine.CandidateLimit), nil
	case "engine.policy_path":
		return c.Engine.PolicyPath, nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "server.listen_addr":
		return c.Server.ListenAddr, nil
	case "server.admin_token_hash":
		return c.Server.AdminTokenHash, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.BlobRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.BlobRoot = filepath.Join(cwd, DefaultBlobDir)
		}
	}

	if apiURL := os.Getenv("DUBLETT_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv("DUBLETT_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if blobRoot := os.Getenv("DUBLETT_BLOB_ROOT"); blobRoot != "" {
		cfg.BlobRoot = blobRoot
	}
	if level := strings.TrimSpace(os.Getenv("DUBLETT_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if addr := strings.TrimSpace(os.Getenv("DUBLETT_LISTEN_ADDR")); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if policy := strings.TrimSpace(os.Getenv("DUBLETT_POLICY")); policy != "" {
		cfg.Engine.PolicyPath = policy
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "engine.lock_wait_ms", "engine.claim_timeout_minutes", "engine.candidate_limit":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Engine.LockWaitMS <= 0 {
		c.Engine.LockWaitMS = DefaultLockWaitMS
	}
	if c.Engine.ClaimTimeoutMinutes <= 0 {
		c.Engine.ClaimTimeoutMinutes = DefaultClaimTimeoutMinutes
	}
	if c.Engine.CandidateLimit <= 0 {
		c.Engine.CandidateLimit = DefaultCandidateLimit
	}
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
}
