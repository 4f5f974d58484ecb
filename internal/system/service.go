package system

import (
	"context"
	"fmt"
	"strings"
)

// ServiceControl abstracts the service manager. The mutating calls are
// fire-and-forget with only a success/failure signal.
type ServiceControl interface {
	Active(ctx context.Context, name string) (bool, error)
	Restart(ctx context.Context, name string) error
	Reload(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) error
}

// Systemd drives systemctl.
type Systemd struct {
	Runner CommandRunner
}

func (s Systemd) Active(ctx context.Context, name string) (bool, error) {
	res, err := s.Runner.Run(ctx, "systemctl", "is-active", name)
	if err != nil {
		return false, fmt.Errorf("systemctl is-active %s: %w", name, err)
	}
	// is-active exits non-zero for inactive/unknown units; that is a
	// normal false, not a probe failure.
	return strings.TrimSpace(res.Stdout) == "active", nil
}

func (s Systemd) Restart(ctx context.Context, name string) error {
	return s.ctl(ctx, "restart", name)
}

func (s Systemd) Reload(ctx context.Context, name string) error {
	return s.ctl(ctx, "reload", name)
}

func (s Systemd) Enable(ctx context.Context, name string) error {
	return s.ctl(ctx, "enable", name)
}

func (s Systemd) ctl(ctx context.Context, verb, name string) error {
	res, err := s.Runner.Run(ctx, "systemctl", verb, name)
	if err != nil {
		return fmt.Errorf("systemctl %s %s: %w", verb, name, err)
	}
	if !res.Success() {
		return fmt.Errorf("systemctl %s %s: %s", verb, name, res.Diagnostic())
	}
	return nil
}

var _ ServiceControl = Systemd{}
