package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"provisor/internal/audit"
	"provisor/internal/color"
	"provisor/internal/config"
	"provisor/internal/engine"
	"provisor/internal/probe"
	"provisor/internal/secret"
	"provisor/internal/steps"
	"provisor/internal/system"
)

var (
	configFile     string
	domain         string
	appVersion     string
	installDir     string
	dbName         string
	dbUser         string
	dbPassword     string
	dbPasswordFile string
	ageIdentity    string
	dryRun         bool
	verbose        bool
	noBrowser      bool
	showLog        int
)

func main() {
	color.Init()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := buildRoot()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "provisor",
		Short: "Converge a host to a ready web application stack",
		Long: `provisor provisions a web application stack (apache, mariadb, php, TLS)
on a single host. Every action probes current state first and mutates only
when needed, so re-running after a failure skips everything already done.`,
		SilenceUsage: true,
		RunE:         run,
	}

	root.Flags().StringVarP(&configFile, "config", "c", "", "path to provisor.yaml (default: ./provisor.yaml when present)")
	root.Flags().StringVar(&domain, "domain", "", "site domain name")
	root.Flags().StringVar(&appVersion, "version", "", "application version to install")
	root.Flags().StringVar(&installDir, "install-dir", "", "document root (default /var/www/<app>)")
	root.Flags().StringVar(&dbName, "db-name", "", "database name (default <app>)")
	root.Flags().StringVar(&dbUser, "db-user", "", "database user (default <app>)")
	root.Flags().StringVar(&dbPassword, "db-password", "", "database password (omit to be prompted or have one generated)")
	root.Flags().StringVar(&dbPasswordFile, "db-password-file", "", "file holding the database password; *.age files are decrypted")
	root.Flags().StringVar(&ageIdentity, "age-identity", "", "age identity file for encrypted credential files")
	root.Flags().BoolVar(&dryRun, "dry-run", false, "probe current state without mutating anything")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print already-satisfied actions")
	root.Flags().BoolVar(&noBrowser, "no-browser", false, "skip the browser launch in the final notification")
	root.Flags().IntVar(&showLog, "show-log", 0, "print the last N audit entries and exit")

	return root
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Resolve(ctx, resolveConfigPath())
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	cfg.Normalize()

	if showLog > 0 {
		return printLog(cfg, showLog)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := resolveCredential(&cfg); err != nil {
		return err
	}

	pipe := &engine.Pipeline{
		Steps:  steps.Build(cfg, hostSystem()),
		Prober: hostProber(),
		Reporter: engine.Multi(
			&engine.Console{Out: os.Stdout, Verbose: verbose},
			&audit.Trail{Path: cfg.AuditLog(), RunID: uuid.NewString()},
		),
		DryRun: dryRun,
	}

	res := pipe.Run(ctx)
	if !res.OK() {
		return fmt.Errorf("step %q failed: %w", res.FailedStep, res.Err)
	}
	if dryRun {
		fmt.Printf("\n%s %d action(s) would change\n", color.Yellow("dry-run:"), res.Changed())
		return nil
	}
	fmt.Printf("\n%s %d action(s) changed, site at %s\n", color.Green("done:"), res.Changed(), cfg.URL())
	return nil
}

// resolveConfigPath prefers the explicit flag, then a provisor.yaml next to
// the working directory, then no file at all.
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	if _, err := os.Stat("provisor.yaml"); err == nil {
		return "provisor.yaml"
	}
	return ""
}

// applyFlags overlays explicitly set flags on cfg. Flags outrank both the
// YAML file and the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	set := map[string]*string{
		"domain":           &domain,
		"version":          &appVersion,
		"install-dir":      &installDir,
		"db-name":          &dbName,
		"db-user":          &dbUser,
		"db-password":      &dbPassword,
		"db-password-file": &dbPasswordFile,
		"age-identity":     &ageIdentity,
	}
	dst := map[string]*string{
		"domain":           &cfg.Domain,
		"version":          &cfg.Version,
		"install-dir":      &cfg.InstallDir,
		"db-name":          &cfg.DBName,
		"db-user":          &cfg.DBUser,
		"db-password":      &cfg.DBPassword,
		"db-password-file": &cfg.DBPasswordFile,
		"age-identity":     &cfg.AgeIdentity,
	}
	for name, src := range set {
		if cmd.Flags().Changed(name) {
			*dst[name] = *src
		}
	}
}

// resolveCredential fills cfg.DBPassword from, in order: the explicit value,
// the credential file, a password persisted by an earlier run, an
// interactive prompt, and finally a generated password. A new password is
// persisted 0600 under the state dir so re-runs converge with the same one.
func resolveCredential(cfg *config.Config) error {
	if cfg.DBPassword != "" {
		return nil
	}
	if cfg.DBPasswordFile != "" {
		pw, err := secret.FromFile(cfg.DBPasswordFile, cfg.AgeIdentity)
		if err != nil {
			return err
		}
		cfg.DBPassword = pw
		return nil
	}
	if data, err := os.ReadFile(cfg.PasswordPath()); err == nil {
		cfg.DBPassword = strings.TrimRight(string(data), "\n")
		return nil
	}

	if interactive() {
		var pw string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Database password").
				Description("Leave empty to generate one").
				EchoMode(huh.EchoModePassword).
				Value(&pw),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("credential prompt: %w", err)
		}
		cfg.DBPassword = pw
	}
	if cfg.DBPassword == "" {
		pw, err := secret.Generate(24)
		if err != nil {
			return err
		}
		cfg.DBPassword = pw
	}

	if dryRun {
		return nil
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	if err := os.WriteFile(cfg.PasswordPath(), []byte(cfg.DBPassword+"\n"), 0o600); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

func interactive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

func hostSystem() steps.System {
	runner := system.ExecRunner{}
	sys := steps.System{
		Packages: system.Apt{Runner: runner},
		Files:    system.OSFS{},
		Database: system.MariaDB{Runner: runner},
		Services: system.Systemd{Runner: runner},
		Certs:    system.OpenSSL{Runner: runner},
		Runner:   runner,
		Out:      os.Stdout,
	}
	if !noBrowser {
		sys.OpenURL = browser.OpenURL
	}
	return sys
}

func hostProber() *probe.Prober {
	runner := system.ExecRunner{}
	return &probe.Prober{
		Packages: system.Apt{Runner: runner},
		Files:    system.OSFS{},
		Database: system.MariaDB{Runner: runner},
		Services: system.Systemd{Runner: runner},
	}
}

func printLog(cfg config.Config, limit int) error {
	entries, err := audit.Read(cfg.AuditLog(), limit)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-9s  %s: %s", e.Time.Format("2006-01-02 15:04:05"), e.Outcome, e.Step, e.Action)
		if e.Error != "" {
			line += "  (" + e.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}
