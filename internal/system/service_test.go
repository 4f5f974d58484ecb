package system

import (
	"context"
	"strings"
	"testing"
)

func TestSystemdActive(t *testing.T) {
	r := &fakeRunner{respond: func(string, []string) (CmdResult, error) {
		return CmdResult{Stdout: "active\n"}, nil
	}}
	ok, err := Systemd{Runner: r}.Active(context.Background(), "apache2")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected active")
	}
	if got := strings.Join(r.lastCall(), " "); got != "systemctl is-active apache2" {
		t.Errorf("ran %q", got)
	}
}

func TestSystemdInactiveIsNormalFalse(t *testing.T) {
	r := &fakeRunner{respond: func(string, []string) (CmdResult, error) {
		return CmdResult{ExitCode: 3, Stdout: "inactive\n"}, nil
	}}
	ok, err := Systemd{Runner: r}.Active(context.Background(), "apache2")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected inactive")
	}
}

func TestSystemdVerbs(t *testing.T) {
	r := &fakeRunner{}
	s := Systemd{Runner: r}
	ctx := context.Background()

	if err := s.Restart(ctx, "apache2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(ctx, "apache2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Enable(ctx, "mariadb"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"systemctl restart apache2",
		"systemctl reload apache2",
		"systemctl enable mariadb",
	}
	for i, w := range want {
		if got := strings.Join(r.calls[i], " "); got != w {
			t.Errorf("call %d = %q, want %q", i, got, w)
		}
	}
}

func TestSystemdFailureCarriesDiagnostic(t *testing.T) {
	r := &fakeRunner{respond: func(string, []string) (CmdResult, error) {
		return CmdResult{ExitCode: 1, Stderr: "Failed to restart apache2.service: Unit not found."}, nil
	}}
	err := Systemd{Runner: r}.Restart(context.Background(), "apache2")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Unit not found") {
		t.Errorf("error %q missing systemctl diagnostic", err)
	}
}
