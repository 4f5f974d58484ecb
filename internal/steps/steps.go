// Package steps declares the provisioning pipeline content: which packages,
// files, databases, and services make up the web stack. Everything here is
// data plugged into the engine; the convergence logic lives in
// internal/engine.
package steps

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"provisor/internal/config"
	"provisor/internal/engine"
	"provisor/internal/system"
	"provisor/internal/template"
)

// System bundles the external collaborators the steps drive.
type System struct {
	Packages system.PackageManager
	Files    system.FS
	Database system.Database
	Services system.ServiceControl
	Certs    system.CertIssuer
	Runner   system.CommandRunner
	OpenURL  func(url string) error // best-effort browser launch; may be nil
	Out      io.Writer              // notification text
}

const (
	sitesAvailable = "/etc/apache2/sites-available"
	sitesEnabled   = "/etc/apache2/sites-enabled"
	modsEnabled    = "/etc/apache2/mods-enabled"
	apacheService  = "apache2"
)

// dependencies is the package set the stack needs, installed one action per
// package so the audit trail shows exactly what was missing.
var dependencies = []string{
	"apache2",
	"mariadb-server",
	"php",
	"libapache2-mod-php",
	"php-mysql",
	"php-xml",
	"php-mbstring",
	"unzip",
	"curl",
	"ssl-cert",
}

// Build assembles the ordered step list for cfg. The order is load-bearing:
// packages before any service configuration, the application before the
// vhost that serves it, the certificate before the HTTPS vhost that
// references it. cfg.DBPassword must already be resolved.
func Build(cfg config.Config, sys System) []engine.Step {
	return []engine.Step{
		systemUpdate(cfg, sys),
		installDependencies(sys),
		installApplication(cfg, sys),
		configureHTTPVHost(cfg, sys),
		hardenSessionCookies(cfg, sys),
		configureDatabase(cfg, sys),
		issueTLSCertificate(cfg, sys),
		configureHTTPSVHost(cfg, sys),
		notify(cfg, sys),
	}
}

func systemUpdate(cfg config.Config, sys System) engine.Step {
	return engine.Step{
		Name: "System update",
		Actions: []engine.Action{{
			Target: engine.FileExists(cfg.UpdateStamp()),
			Desc:   "refresh package index",
			Apply: func(ctx context.Context) error {
				if err := sys.Packages.Update(ctx); err != nil {
					return err
				}
				if err := sys.Files.MkdirAll(cfg.StateDir, 0o755); err != nil {
					return err
				}
				return sys.Files.WriteFile(cfg.UpdateStamp(), []byte("ok\n"), 0o644)
			},
		}},
	}
}

func installDependencies(sys System) engine.Step {
	var actions []engine.Action
	for _, pkg := range dependencies {
		pkg := pkg
		actions = append(actions, engine.Action{
			Target: engine.PackageInstalled(pkg),
			Desc:   fmt.Sprintf("install package %q", pkg),
			Apply: func(ctx context.Context) error {
				return sys.Packages.Install(ctx, pkg)
			},
		})
	}
	return engine.Step{Name: "Install dependencies", Actions: actions}
}

func installApplication(cfg config.Config, sys System) engine.Step {
	// The release marker records which version is unpacked, so a version
	// bump in the configuration makes this action fire again.
	return engine.Step{
		Name: "Install application",
		Actions: []engine.Action{{
			Target: engine.FileContains(cfg.ReleaseMarker(), cfg.Version),
			Desc:   fmt.Sprintf("install %s %s into %s", cfg.App, cfg.Version, cfg.InstallDir),
			Apply: func(ctx context.Context) error {
				url, err := cfg.ResolvedDownloadURL()
				if err != nil {
					return err
				}
				archive := filepath.Join("/tmp", cfg.App+".tar.gz")
				if err := runCmd(ctx, sys.Runner, "curl", "-fsSL", "-o", archive, url); err != nil {
					return err
				}
				if err := sys.Files.MkdirAll(cfg.InstallDir, 0o755); err != nil {
					return err
				}
				if err := runCmd(ctx, sys.Runner, "tar", "--strip-components=1", "-xzf", archive, "-C", cfg.InstallDir); err != nil {
					return err
				}
				if err := sys.Files.ChownTree(cfg.InstallDir, cfg.WebUser, cfg.WebUser); err != nil {
					return err
				}
				if err := sys.Files.MkdirAll(cfg.StateDir, 0o755); err != nil {
					return err
				}
				return sys.Files.WriteFile(cfg.ReleaseMarker(), []byte(cfg.Version+"\n"), 0o644)
			},
		}},
	}
}

func configureHTTPVHost(cfg config.Config, sys System) engine.Step {
	vhost := filepath.Join(sitesAvailable, cfg.Domain+".conf")
	return engine.Step{
		Name: "Configure HTTP virtual host",
		Actions: []engine.Action{
			{
				Target: engine.FileExists(vhost),
				Desc:   fmt.Sprintf("write virtual host for %s", cfg.Domain),
				Apply: func(ctx context.Context) error {
					body, err := template.Render("vhost", httpVHost, vhostData(cfg))
					if err != nil {
						return err
					}
					return sys.Files.WriteFile(vhost, []byte(body), 0o644)
				},
			},
			{
				Target: engine.FileExists(filepath.Join(modsEnabled, "rewrite.load")),
				Desc:   "enable apache module rewrite",
				Apply: func(ctx context.Context) error {
					return runCmd(ctx, sys.Runner, "a2enmod", "rewrite")
				},
			},
			{
				Target: engine.FileExists(filepath.Join(sitesEnabled, cfg.Domain+".conf")),
				Desc:   fmt.Sprintf("enable site %s", cfg.Domain),
				Apply: func(ctx context.Context) error {
					if err := runCmd(ctx, sys.Runner, "a2ensite", cfg.Domain+".conf"); err != nil {
						return err
					}
					return sys.Services.Reload(ctx, apacheService)
				},
			},
			{
				Target: engine.ServiceActive(apacheService),
				Desc:   "start and enable apache2",
				Apply: func(ctx context.Context) error {
					if err := sys.Services.Enable(ctx, apacheService); err != nil {
						return err
					}
					return sys.Services.Restart(ctx, apacheService)
				},
			},
		},
	}
}

// cookiePolicy is the session hardening applied to the PHP runtime config.
var cookiePolicy = []iniSetting{
	{"session.cookie_secure", "On"},
	{"session.cookie_httponly", "On"},
	{"session.cookie_samesite", "Strict"},
}

func hardenSessionCookies(cfg config.Config, sys System) engine.Step {
	var actions []engine.Action
	for _, setting := range cookiePolicy {
		setting := setting
		actions = append(actions, engine.Action{
			Target: engine.FileContains(cfg.PHPIni, setting.Line()),
			Desc:   fmt.Sprintf("set %s = %s", setting.Key, setting.Value),
			Apply: func(ctx context.Context) error {
				if err := setIni(sys.Files, cfg.PHPIni, setting); err != nil {
					return err
				}
				// Stale sessions carry the old cookie flags; drop them
				// only when the policy actually changed.
				if err := sys.Files.RemoveContents(cfg.SessionDir); err != nil {
					return err
				}
				return sys.Services.Reload(ctx, apacheService)
			},
		})
	}
	return engine.Step{Name: "Harden session cookie policy", Actions: actions}
}

func configureDatabase(cfg config.Config, sys System) engine.Step {
	return engine.Step{
		Name: "Configure database",
		Actions: []engine.Action{
			{
				Target: engine.DatabaseExists(cfg.DBName),
				Desc:   fmt.Sprintf("create database %q", cfg.DBName),
				Apply: func(ctx context.Context) error {
					return sys.Database.ExecDDL(ctx, []string{
						fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", cfg.DBName),
					})
				},
			},
			{
				Target: engine.DatabaseUserExists(cfg.DBUser),
				Desc:   fmt.Sprintf("create database user %q", cfg.DBUser),
				Apply: func(ctx context.Context) error {
					return sys.Database.ExecDDL(ctx, []string{
						fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'localhost' IDENTIFIED BY '%s'", cfg.DBUser, cfg.DBPassword),
						fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'localhost'", cfg.DBName, cfg.DBUser),
						"FLUSH PRIVILEGES",
					})
				},
			},
			{
				Target: engine.FileContains(cfg.AppConfigPath(), "'dbname' => '"+cfg.DBName+"'"),
				Desc:   "write application database config",
				Apply: func(ctx context.Context) error {
					body, err := template.Render("appconfig", appConfig, dbData(cfg))
					if err != nil {
						return err
					}
					if err := sys.Files.WriteFile(cfg.AppConfigPath(), []byte(body), 0o640); err != nil {
						return err
					}
					return sys.Files.ChownTree(cfg.AppConfigPath(), cfg.WebUser, cfg.WebUser)
				},
			},
		},
	}
}

func issueTLSCertificate(cfg config.Config, sys System) engine.Step {
	return engine.Step{
		Name: "Issue TLS certificate",
		Actions: []engine.Action{
			{
				Target: engine.FileExists(cfg.KeyPath()),
				Desc:   "generate private key",
				Apply: func(ctx context.Context) error {
					if err := sys.Files.MkdirAll(cfg.CertDir, 0o755); err != nil {
						return err
					}
					return sys.Certs.GenerateKey(ctx, cfg.KeyPath())
				},
			},
			{
				Target: engine.FileExists(cfg.CertPath()),
				Desc:   fmt.Sprintf("issue self-signed certificate for %s", cfg.Domain),
				Apply: func(ctx context.Context) error {
					subject := system.Subject{
						Country:      "US",
						State:        "N/A",
						Locality:     "N/A",
						Organization: cfg.App,
						CommonName:   cfg.Domain,
					}
					return sys.Certs.GenerateCert(ctx, cfg.KeyPath(), cfg.CertPath(), subject, cfg.CertDays)
				},
			},
		},
	}
}

func configureHTTPSVHost(cfg config.Config, sys System) engine.Step {
	vhost := filepath.Join(sitesAvailable, cfg.Domain+"-ssl.conf")
	return engine.Step{
		Name: "Configure HTTPS virtual host",
		Actions: []engine.Action{
			{
				Target: engine.FileExists(filepath.Join(modsEnabled, "ssl.load")),
				Desc:   "enable apache module ssl",
				Apply: func(ctx context.Context) error {
					return runCmd(ctx, sys.Runner, "a2enmod", "ssl")
				},
			},
			{
				Target: engine.FileExists(vhost),
				Desc:   fmt.Sprintf("write SSL virtual host for %s", cfg.Domain),
				Apply: func(ctx context.Context) error {
					body, err := template.Render("vhost-ssl", httpsVHost, vhostData(cfg))
					if err != nil {
						return err
					}
					return sys.Files.WriteFile(vhost, []byte(body), 0o644)
				},
			},
			{
				Target: engine.FileExists(filepath.Join(sitesEnabled, cfg.Domain+"-ssl.conf")),
				Desc:   fmt.Sprintf("enable site %s-ssl", cfg.Domain),
				Apply: func(ctx context.Context) error {
					if err := runCmd(ctx, sys.Runner, "a2ensite", cfg.Domain+"-ssl.conf"); err != nil {
						return err
					}
					return sys.Services.Restart(ctx, apacheService)
				},
			},
		},
	}
}

func notify(cfg config.Config, sys System) engine.Step {
	return engine.Step{
		Name: "Post-install notification",
		Actions: []engine.Action{{
			Target: engine.FileExists(cfg.NotifyStamp()),
			Desc:   "announce site URL",
			Apply: func(ctx context.Context) error {
				fmt.Fprintf(sys.Out, "\n%s %s is ready at %s\n", cfg.App, cfg.Version, cfg.URL())
				if sys.OpenURL != nil {
					sys.OpenURL(cfg.URL()) // best effort
				}
				if err := sys.Files.MkdirAll(cfg.StateDir, 0o755); err != nil {
					return err
				}
				return sys.Files.WriteFile(cfg.NotifyStamp(), []byte(cfg.URL()+"\n"), 0o644)
			},
		}},
	}
}

// runCmd runs an external command and converts a non-zero exit into an
// error carrying the command's diagnostic output.
func runCmd(ctx context.Context, r system.CommandRunner, name string, args ...string) error {
	res, err := r.Run(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !res.Success() {
		return fmt.Errorf("%s: %s", name, res.Diagnostic())
	}
	return nil
}
