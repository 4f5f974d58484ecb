// Package config resolves the run configuration: built-in defaults, then
// the optional YAML file, then PROVISOR_* environment variables, then
// command-line flags (applied by the caller). The resolved Config is
// read-only for the duration of a run.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"provisor/internal/template"
)

// Config is the flat set of named options a run needs.
type Config struct {
	App         string `yaml:"app" env:"APP"`
	Domain      string `yaml:"domain" env:"DOMAIN"`
	Version     string `yaml:"version" env:"VERSION"`
	DownloadURL string `yaml:"download_url" env:"DOWNLOAD_URL"` // Go template, sees {{.Version}}
	InstallDir  string `yaml:"install_dir" env:"INSTALL_DIR"`
	WebUser     string `yaml:"web_user" env:"WEB_USER"`
	StateDir    string `yaml:"state_dir" env:"STATE_DIR"`

	DBName         string `yaml:"db_name" env:"DB_NAME"`
	DBUser         string `yaml:"db_user" env:"DB_USER"`
	DBPassword     string `yaml:"db_password" env:"DB_PASSWORD"`
	DBPasswordFile string `yaml:"db_password_file" env:"DB_PASSWORD_FILE"`
	AgeIdentity    string `yaml:"age_identity" env:"AGE_IDENTITY"`

	PHPIni     string `yaml:"php_ini" env:"PHP_INI"`
	SessionDir string `yaml:"session_dir" env:"SESSION_DIR"`

	CertDir  string `yaml:"cert_dir" env:"CERT_DIR"`
	CertDays int    `yaml:"cert_days" env:"CERT_DAYS"`
}

// Default returns the built-in option values.
func Default() Config {
	return Config{
		App:        "webapp",
		WebUser:    "www-data",
		StateDir:   "/var/lib/provisor",
		PHPIni:     "/etc/php/8.2/apache2/php.ini",
		SessionDir: "/var/lib/php/sessions",
		CertDir:    "/etc/ssl/provisor",
		CertDays:   365,
	}
}

// Resolve builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), and the environment.
func Resolve(ctx context.Context, path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper("PROVISOR_", envconfig.OsLookuper()),
	}); err != nil {
		return Config{}, fmt.Errorf("environment config: %w", err)
	}
	return cfg, nil
}

// Normalize fills in the values derived from other options when they were
// not set explicitly. Call it after all sources have been merged.
func (c *Config) Normalize() {
	if c.InstallDir == "" {
		c.InstallDir = filepath.Join("/var/www", c.App)
	}
	if c.DBName == "" {
		c.DBName = c.App
	}
	if c.DBUser == "" {
		c.DBUser = c.App
	}
}

// Validate reports every missing or malformed required option at once,
// before any pipeline is constructed.
func (c Config) Validate() error {
	var problems []string
	if c.Domain == "" {
		problems = append(problems, "domain is required")
	}
	if c.Version == "" {
		problems = append(problems, "version is required")
	}
	if c.DownloadURL == "" {
		problems = append(problems, "download_url is required")
	}
	if !filepath.IsAbs(c.InstallDir) {
		problems = append(problems, fmt.Sprintf("install_dir %q must be absolute", c.InstallDir))
	}
	if c.CertDays <= 0 {
		problems = append(problems, "cert_days must be positive")
	}
	if c.DBPassword != "" && c.DBPasswordFile != "" {
		problems = append(problems, "db_password and db_password_file are mutually exclusive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ResolvedDownloadURL renders the download URL template for the configured
// version.
func (c Config) ResolvedDownloadURL() (string, error) {
	return template.Render("download_url", c.DownloadURL, struct{ Version string }{c.Version})
}

// URL is the final site address the notification reports.
func (c Config) URL() string { return "https://" + c.Domain + "/" }

// Paths derived from the state and certificate directories.

func (c Config) UpdateStamp() string { return filepath.Join(c.StateDir, "apt-update.stamp") }

func (c Config) ReleaseMarker() string { return filepath.Join(c.StateDir, "release") }

func (c Config) NotifyStamp() string { return filepath.Join(c.StateDir, "notified.stamp") }

func (c Config) PasswordPath() string { return filepath.Join(c.StateDir, "db-password") }

func (c Config) AuditLog() string { return filepath.Join(c.StateDir, "history.log") }

func (c Config) KeyPath() string { return filepath.Join(c.CertDir, c.Domain+".key") }

func (c Config) CertPath() string { return filepath.Join(c.CertDir, c.Domain+".crt") }

// AppConfigPath is the application's own database configuration file.
func (c Config) AppConfigPath() string { return filepath.Join(c.InstallDir, "config.php") }
