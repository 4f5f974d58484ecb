package steps

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"provisor/internal/config"
	"provisor/internal/engine"
	"provisor/internal/probe"
	"provisor/internal/system"
)

// world is an in-memory host: every external collaborator backed by maps,
// with a single mutation counter so tests can assert "nothing was touched".
type world struct {
	packages  map[string]bool
	files     map[string]string
	dbs       map[string]bool
	users     map[string]bool
	active    map[string]bool
	removed   []string
	opened    []string
	out       bytes.Buffer
	mutations int
	failDDL   bool
}

func newWorld(cfg config.Config) *world {
	return &world{
		packages: make(map[string]bool),
		files: map[string]string{
			// php.ini ships with the runtime package; seed it so the
			// hardening step has a file to edit.
			cfg.PHPIni: "; PHP configuration\nsession.cookie_secure = Off\n",
		},
		dbs:    make(map[string]bool),
		users:  make(map[string]bool),
		active: make(map[string]bool),
	}
}

// PackageManager

func (w *world) Installed(_ context.Context, name string) (bool, error) {
	return w.packages[name], nil
}

func (w *world) Install(_ context.Context, name string) error {
	w.mutations++
	w.packages[name] = true
	return nil
}

func (w *world) Update(context.Context) error {
	w.mutations++
	return nil
}

// FS

func (w *world) Exists(path string) (bool, error) {
	_, ok := w.files[path]
	return ok, nil
}

func (w *world) Contains(path, pattern string) (bool, error) {
	content, ok := w.files[path]
	if !ok {
		return false, nil
	}
	return strings.Contains(content, pattern), nil
}

func (w *world) ReadFile(path string) ([]byte, error) {
	content, ok := w.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

func (w *world) WriteFile(path string, data []byte, _ os.FileMode) error {
	w.mutations++
	w.files[path] = string(data)
	return nil
}

func (w *world) MkdirAll(string, os.FileMode) error { return nil }

func (w *world) RemoveContents(dir string) error {
	w.mutations++
	w.removed = append(w.removed, dir)
	return nil
}

func (w *world) ChownTree(string, string, string) error { return nil }

// Database

func (w *world) DatabaseExists(_ context.Context, name string) (bool, error) {
	return w.dbs[name], nil
}

func (w *world) UserExists(_ context.Context, name string) (bool, error) {
	return w.users[name], nil
}

func (w *world) ExecDDL(_ context.Context, statements []string) error {
	if w.failDDL {
		return errors.New("ERROR 2002 (HY000): Can't connect to local server")
	}
	w.mutations++
	for _, stmt := range statements {
		switch {
		case strings.HasPrefix(stmt, "CREATE DATABASE IF NOT EXISTS `"):
			name := strings.SplitN(strings.TrimPrefix(stmt, "CREATE DATABASE IF NOT EXISTS `"), "`", 2)[0]
			w.dbs[name] = true
		case strings.HasPrefix(stmt, "CREATE USER IF NOT EXISTS '"):
			name := strings.SplitN(strings.TrimPrefix(stmt, "CREATE USER IF NOT EXISTS '"), "'", 2)[0]
			w.users[name] = true
		}
	}
	return nil
}

// ServiceControl

func (w *world) Active(_ context.Context, name string) (bool, error) {
	return w.active[name], nil
}

func (w *world) Restart(_ context.Context, name string) error {
	w.mutations++
	w.active[name] = true
	return nil
}

func (w *world) Reload(_ context.Context, name string) error {
	w.mutations++
	return nil
}

func (w *world) Enable(_ context.Context, name string) error {
	w.mutations++
	return nil
}

// CertIssuer

func (w *world) GenerateKey(_ context.Context, keyPath string) error {
	w.mutations++
	w.files[keyPath] = "KEY"
	return nil
}

func (w *world) GenerateCert(_ context.Context, _, certPath string, _ system.Subject, _ int) error {
	w.mutations++
	w.files[certPath] = "CERT"
	return nil
}

// CommandRunner with enough apache semantics for the enable probes.

func (w *world) Run(_ context.Context, name string, args ...string) (system.CmdResult, error) {
	w.mutations++
	switch name {
	case "a2enmod":
		w.files["/etc/apache2/mods-enabled/"+args[0]+".load"] = ""
	case "a2ensite":
		w.files["/etc/apache2/sites-enabled/"+args[0]] = ""
	}
	return system.CmdResult{}, nil
}

func (w *world) sys() System {
	return System{
		Packages: w,
		Files:    w,
		Database: w,
		Services: w,
		Certs:    w,
		Runner:   w,
		OpenURL: func(url string) error {
			w.opened = append(w.opened, url)
			return nil
		},
		Out: &w.out,
	}
}

func (w *world) prober() *probe.Prober {
	return &probe.Prober{Packages: w, Files: w, Database: w, Services: w}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Domain = "example.org"
	cfg.Version = "2.1.0"
	cfg.DownloadURL = "https://releases.example.org/webapp-{{.Version}}.tar.gz"
	cfg.DBPassword = "s3cret"
	cfg.Normalize()
	return cfg
}

func runPipeline(cfg config.Config, w *world, dryRun bool) *engine.RunResult {
	pipe := &engine.Pipeline{
		Steps:  Build(cfg, w.sys()),
		Prober: w.prober(),
		DryRun: dryRun,
	}
	return pipe.Run(context.Background())
}

func TestStepOrder(t *testing.T) {
	built := Build(testConfig(), newWorld(testConfig()).sys())
	want := []string{
		"System update",
		"Install dependencies",
		"Install application",
		"Configure HTTP virtual host",
		"Harden session cookie policy",
		"Configure database",
		"Issue TLS certificate",
		"Configure HTTPS virtual host",
		"Post-install notification",
	}
	if len(built) != len(want) {
		t.Fatalf("got %d steps, want %d", len(built), len(want))
	}
	for i, step := range built {
		if step.Name != want[i] {
			t.Errorf("step %d = %q, want %q", i, step.Name, want[i])
		}
	}
}

func TestFreshInstall(t *testing.T) {
	cfg := testConfig()
	w := newWorld(cfg)

	res := runPipeline(cfg, w, false)
	if !res.OK() {
		t.Fatalf("fresh install failed at %q: %v", res.FailedStep, res.Err)
	}
	for _, r := range res.Results {
		if r.Outcome != engine.Changed {
			t.Errorf("%s / %s = %q, want %q", r.Step, r.Action, r.Outcome, engine.Changed)
		}
	}
	if !w.packages["apache2"] || !w.packages["mariadb-server"] {
		t.Error("core packages not installed")
	}
	if !w.dbs[cfg.DBName] || !w.users[cfg.DBUser] {
		t.Error("database or user not created")
	}
	if _, ok := w.files[cfg.CertPath()]; !ok {
		t.Error("certificate not issued")
	}
	if !strings.Contains(w.files[cfg.AppConfigPath()], "'dbpassword' => 's3cret'") {
		t.Error("application config missing credential")
	}
	if len(w.removed) == 0 || w.removed[0] != cfg.SessionDir {
		t.Errorf("session dir not cleared: %v", w.removed)
	}
	if len(w.opened) != 1 || w.opened[0] != cfg.URL() {
		t.Errorf("browser launch = %v, want %q", w.opened, cfg.URL())
	}
	if !strings.Contains(w.out.String(), cfg.URL()) {
		t.Errorf("notification output %q missing URL", w.out.String())
	}
}

func TestRerunConvergesWithoutMutation(t *testing.T) {
	cfg := testConfig()
	w := newWorld(cfg)

	if res := runPipeline(cfg, w, false); !res.OK() {
		t.Fatalf("fresh install failed: %v", res.Err)
	}

	w.mutations = 0
	res := runPipeline(cfg, w, false)
	if !res.OK() {
		t.Fatalf("re-run failed at %q: %v", res.FailedStep, res.Err)
	}
	for _, r := range res.Results {
		if r.Outcome != engine.Satisfied {
			t.Errorf("%s / %s = %q, want %q", r.Step, r.Action, r.Outcome, engine.Satisfied)
		}
	}
	if w.mutations != 0 {
		t.Errorf("re-run performed %d mutations, want 0", w.mutations)
	}
}

func TestVersionBumpReinstallsApplication(t *testing.T) {
	cfg := testConfig()
	w := newWorld(cfg)
	if res := runPipeline(cfg, w, false); !res.OK() {
		t.Fatalf("fresh install failed: %v", res.Err)
	}

	cfg.Version = "2.2.0"
	res := runPipeline(cfg, w, false)
	if !res.OK() {
		t.Fatalf("upgrade run failed: %v", res.Err)
	}
	var install engine.Result
	for _, r := range res.Results {
		if r.Step == "Install application" {
			install = r
		}
	}
	if install.Outcome != engine.Changed {
		t.Errorf("install outcome = %q, want %q after version bump", install.Outcome, engine.Changed)
	}
	if !strings.Contains(w.files[cfg.ReleaseMarker()], "2.2.0") {
		t.Errorf("release marker = %q", w.files[cfg.ReleaseMarker()])
	}
}

func TestMidPipelineFailureAndResume(t *testing.T) {
	cfg := testConfig()
	w := newWorld(cfg)
	w.failDDL = true

	res := runPipeline(cfg, w, false)
	if res.OK() {
		t.Fatal("run succeeded despite database failure")
	}
	if res.FailedStep != "Configure database" {
		t.Errorf("FailedStep = %q", res.FailedStep)
	}
	if !strings.Contains(res.Err.Error(), "Can't connect") {
		t.Errorf("error %q missing server diagnostic", res.Err)
	}
	if _, ok := w.files[cfg.KeyPath()]; ok {
		t.Error("TLS step ran after the database failure")
	}
	last := res.Results[len(res.Results)-1]
	if last.Step != "Configure database" || last.Outcome != engine.Failed {
		t.Errorf("trail ends with %s/%q", last.Step, last.Outcome)
	}

	// Fix the cause and re-run: everything before the database step is
	// already satisfied, the rest now converges.
	w.failDDL = false
	res = runPipeline(cfg, w, false)
	if !res.OK() {
		t.Fatalf("resume failed at %q: %v", res.FailedStep, res.Err)
	}
	dbSeen := false
	for _, r := range res.Results {
		if r.Step == "Configure database" {
			dbSeen = true
		}
		want := engine.Changed
		if !dbSeen {
			want = engine.Satisfied
		}
		if r.Outcome != want {
			t.Errorf("%s / %s = %q, want %q", r.Step, r.Action, r.Outcome, want)
		}
	}
}

func TestDryRunMutatesNothing(t *testing.T) {
	cfg := testConfig()
	w := newWorld(cfg)

	res := runPipeline(cfg, w, true)
	if !res.OK() {
		t.Fatalf("dry run failed: %v", res.Err)
	}
	if res.Changed() != len(res.Results) {
		t.Errorf("dry run reported %d changes of %d actions", res.Changed(), len(res.Results))
	}
	if w.mutations != 0 {
		t.Errorf("dry run performed %d mutations, want 0", w.mutations)
	}
	if len(w.files) != 1 {
		t.Errorf("dry run touched the filesystem: %v", w.files)
	}
}
