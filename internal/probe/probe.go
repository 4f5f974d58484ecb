// Package probe answers engine target queries against the live system
// interfaces. Every check is a pure read.
package probe

import (
	"context"
	"fmt"

	"provisor/internal/engine"
	"provisor/internal/system"
)

// Prober dispatches a Target to the matching system interface.
type Prober struct {
	Packages system.PackageManager
	Files    system.FS
	Database system.Database
	Services system.ServiceControl
}

func (p *Prober) Satisfied(ctx context.Context, t engine.Target) (bool, error) {
	switch t.Kind {
	case engine.KindPackage:
		return p.Packages.Installed(ctx, t.Name)
	case engine.KindFile:
		return p.Files.Exists(t.Path)
	case engine.KindFileContent:
		return p.Files.Contains(t.Path, t.Pattern)
	case engine.KindDatabase:
		return p.Database.DatabaseExists(ctx, t.Name)
	case engine.KindDatabaseUser:
		return p.Database.UserExists(ctx, t.Name)
	case engine.KindService:
		return p.Services.Active(ctx, t.Name)
	default:
		return false, fmt.Errorf("unknown target kind %q", t.Kind)
	}
}

var _ engine.Prober = (*Prober)(nil)
