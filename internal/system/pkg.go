package system

import (
	"context"
	"fmt"
	"strings"
)

// PackageManager abstracts the host package manager. Installed must be a
// pure query; Install must be idempotent at the package-manager level.
type PackageManager interface {
	Installed(ctx context.Context, name string) (bool, error)
	Install(ctx context.Context, name string) error
	Update(ctx context.Context) error
}

// Apt drives dpkg/apt-get.
type Apt struct {
	Runner CommandRunner
}

// Installed queries dpkg for the package's install status.
// An unknown package is a normal false, not an error.
func (a Apt) Installed(ctx context.Context, name string) (bool, error) {
	res, err := a.Runner.Run(ctx, "dpkg-query", "-W", "-f=${db:Status-Status}", name)
	if err != nil {
		return false, fmt.Errorf("dpkg-query %s: %w", name, err)
	}
	if !res.Success() {
		return false, nil // dpkg-query exits 1 for packages it has never seen
	}
	return strings.TrimSpace(res.Stdout) == "installed", nil
}

func (a Apt) Install(ctx context.Context, name string) error {
	res, err := a.Runner.Run(ctx, "apt-get", "install", "-y", "--no-install-recommends", name)
	if err != nil {
		return fmt.Errorf("apt-get install %s: %w", name, err)
	}
	if !res.Success() {
		return fmt.Errorf("apt-get install %s: %s", name, res.Diagnostic())
	}
	return nil
}

func (a Apt) Update(ctx context.Context) error {
	res, err := a.Runner.Run(ctx, "apt-get", "update")
	if err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("apt-get update: %s", res.Diagnostic())
	}
	return nil
}

var _ PackageManager = Apt{}
