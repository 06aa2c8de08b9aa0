package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// MaxWishesPerOriginPerDay caps creations per origin fingerprint in any trailing 24h window.
	MaxWishesPerOriginPerDay int `json:"max_wishes_per_origin_per_day"`

	// GracePeriodMinutes is how long a soft-deleted wish is retained before reclamation.
	GracePeriodMinutes int `json:"grace_period_minutes"`

	// CleanupIntervalMinutes is the period of the reclamation sweep.
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes"`

	// MaxImagesPerWish caps the number of images attached to one wish.
	MaxImagesPerWish int `json:"max_images_per_wish"`

	// MaxImageBytes is the per-file size ceiling enforced by the media store.
	MaxImageBytes int `json:"max_image_bytes"`

	// MinFreeDiskBytes is the free space an image save must leave on the
	// upload volume. A negative value disables the check.
	MinFreeDiskBytes int `json:"min_free_disk_bytes"`

	// UploadDir is the root directory for stored images.
	// Empty means <baseDir>/uploads.
	UploadDir string `json:"upload_dir,omitempty"`

	// FingerprintSecret keys the one-way hash of client origins.
	// Changing it invalidates every in-flight quota window.
	FingerprintSecret string `json:"fingerprint_secret,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" (colored, for terminals) or "json".
	LogFormat string `json:"log_format,omitempty"`

	// MetricsAddr, when set, exposes Prometheus metrics at http://<addr>/metrics
	// while the server runs.
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// envConfig mirrors the scalar options that may be set from the environment.
// Zero values mean "not set" and never override the file config.
type envConfig struct {
	MaxWishesPerOriginPerDay int    `env:"WISHADAY_MAX_WISHES_PER_ORIGIN_PER_DAY"`
	GracePeriodMinutes       int    `env:"WISHADAY_GRACE_PERIOD_MINUTES"`
	CleanupIntervalMinutes   int    `env:"WISHADAY_CLEANUP_INTERVAL_MINUTES"`
	MaxImagesPerWish         int    `env:"WISHADAY_MAX_IMAGES_PER_WISH"`
	MaxImageBytes            int    `env:"WISHADAY_MAX_IMAGE_BYTES"`
	MinFreeDiskBytes         int    `env:"WISHADAY_MIN_FREE_DISK_BYTES"`
	UploadDir                string `env:"WISHADAY_UPLOAD_DIR"`
	FingerprintSecret        string `env:"WISHADAY_FINGERPRINT_SECRET"`
	LogLevel                 string `env:"WISHADAY_LOG_LEVEL"`
	LogFormat                string `env:"WISHADAY_LOG_FORMAT"`
	MetricsAddr              string `env:"WISHADAY_METRICS_ADDR"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxWishesPerOriginPerDay: 10,
		GracePeriodMinutes:       10,
		CleanupIntervalMinutes:   30,
		MaxImagesPerWish:         5,
		MaxImageBytes:            2 * 1024 * 1024,
		MinFreeDiskBytes:         100 * 1024 * 1024,
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// GracePeriod returns the soft-delete retention as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMinutes) * time.Minute
}

// CleanupInterval returns the sweep period as a duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// ResolveUploadDir returns UploadDir, defaulting to baseDir/uploads.
func (c *Config) ResolveUploadDir(baseDir string) string {
	if c.UploadDir != "" {
		return c.UploadDir
	}
	return filepath.Join(baseDir, "uploads")
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.wishaday.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithEnv loads baseDir/config.json, then applies WISHADAY_* environment
// variables on top. A .env file in baseDir is read first if present; it never
// overrides variables already set in the process environment.
func LoadWithEnv(baseDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(filepath.Join(baseDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	env, err := loadEnv()
	if err != nil {
		return nil, err
	}

	return Merge(cfg, env), nil
}

// EnsureFingerprintSecret gives cfg a fingerprint secret when none is
// configured: a random one is generated and persisted to baseDir/config.json,
// keeping any other keys in that file. It reports whether a secret was generated.
func EnsureFingerprintSecret(baseDir string, cfg *Config) (bool, error) {
	if strings.TrimSpace(cfg.FingerprintSecret) != "" {
		return false, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return false, err
	}
	secret := hex.EncodeToString(buf)

	configPath := filepath.Join(baseDir, "config.json")
	raw := map[string]any{}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &raw); err != nil {
			return false, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}
	raw["fingerprint_secret"] = secret

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return false, err
	}
	if err := writeFileAtomic(baseDir, configPath, append(out, '\n')); err != nil {
		return false, err
	}

	cfg.FingerprintSecret = secret
	return true, nil
}

// writeFileAtomic writes data to path via a temp file in dir and a rename.
func writeFileAtomic(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// loadEnv decodes WISHADAY_* variables into a zero-based overlay config.
func loadEnv() (*Config, error) {
	var env envConfig
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}

	return &Config{
		MaxWishesPerOriginPerDay: env.MaxWishesPerOriginPerDay,
		GracePeriodMinutes:       env.GracePeriodMinutes,
		CleanupIntervalMinutes:   env.CleanupIntervalMinutes,
		MaxImagesPerWish:         env.MaxImagesPerWish,
		MaxImageBytes:            env.MaxImageBytes,
		MinFreeDiskBytes:         env.MinFreeDiskBytes,
		UploadDir:                env.UploadDir,
		FingerprintSecret:        env.FingerprintSecret,
		LogLevel:                 env.LogLevel,
		LogFormat:                env.LogFormat,
		MetricsAddr:              env.MetricsAddr,
	}, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		MaxWishesPerOriginPerDay: firstInt(overlay.MaxWishesPerOriginPerDay, base.MaxWishesPerOriginPerDay),
		GracePeriodMinutes:       firstInt(overlay.GracePeriodMinutes, base.GracePeriodMinutes),
		CleanupIntervalMinutes:   firstInt(overlay.CleanupIntervalMinutes, base.CleanupIntervalMinutes),
		MaxImagesPerWish:         firstInt(overlay.MaxImagesPerWish, base.MaxImagesPerWish),
		MaxImageBytes:            firstInt(overlay.MaxImageBytes, base.MaxImageBytes),
		MinFreeDiskBytes:         firstInt(overlay.MinFreeDiskBytes, base.MinFreeDiskBytes),
		UploadDir:                firstString(overlay.UploadDir, base.UploadDir),
		FingerprintSecret:        firstString(overlay.FingerprintSecret, base.FingerprintSecret),
		DBMaxOpenConns:           firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:           firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		LogLevel:                 firstString(overlay.LogLevel, base.LogLevel),
		LogFormat:                firstString(overlay.LogFormat, base.LogFormat),
		MetricsAddr:              firstString(overlay.MetricsAddr, base.MetricsAddr),
		DisabledTools:            mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
	}
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
