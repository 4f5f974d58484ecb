// Package engine implements the convergence core: declarative targets,
// probe-before-mutate actions, ordered steps, and a fail-fast pipeline.
package engine

import "fmt"

// TargetKind discriminates the Target variants.
type TargetKind string

const (
	KindPackage      TargetKind = "package"
	KindFile         TargetKind = "file"
	KindFileContent  TargetKind = "file-content"
	KindDatabase     TargetKind = "database"
	KindDatabaseUser TargetKind = "database-user"
	KindService      TargetKind = "service"
)

// Target is a declarative description of a desired piece of system state.
// Construct one with the variant functions below; a Target is immutable
// after construction.
type Target struct {
	Kind    TargetKind
	Name    string // package, database, user, or service name
	Path    string // file path for file targets
	Pattern string // substring for KindFileContent
}

// PackageInstalled targets an installed system package.
func PackageInstalled(name string) Target {
	return Target{Kind: KindPackage, Name: name}
}

// FileExists targets the existence of a file or directory at path.
func FileExists(path string) Target {
	return Target{Kind: KindFile, Path: path}
}

// FileContains targets a file containing pattern as a substring.
// The file not existing counts as the pattern being absent, not as an error.
func FileContains(path, pattern string) Target {
	return Target{Kind: KindFileContent, Path: path, Pattern: pattern}
}

// DatabaseExists targets the existence of a named database.
func DatabaseExists(name string) Target {
	return Target{Kind: KindDatabase, Name: name}
}

// DatabaseUserExists targets the existence of a named database user.
func DatabaseUserExists(name string) Target {
	return Target{Kind: KindDatabaseUser, Name: name}
}

// ServiceActive targets a system service being active.
func ServiceActive(name string) Target {
	return Target{Kind: KindService, Name: name}
}

func (t Target) String() string {
	switch t.Kind {
	case KindFile:
		return fmt.Sprintf("file %s", t.Path)
	case KindFileContent:
		return fmt.Sprintf("file %s contains %q", t.Path, t.Pattern)
	default:
		return fmt.Sprintf("%s %s", t.Kind, t.Name)
	}
}
