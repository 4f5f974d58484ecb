package system

import (
	"context"
	"fmt"
	"strings"
)

// Database abstracts the database server reached over its local control
// channel. The existence checks are pure queries; ExecDDL is expected to be
// given IF-NOT-EXISTS style statements so it stays idempotent.
type Database interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	UserExists(ctx context.Context, name string) (bool, error)
	ExecDDL(ctx context.Context, statements []string) error
}

// MariaDB drives the mysql client binary over the local socket as root.
type MariaDB struct {
	Runner CommandRunner
}

func (m MariaDB) DatabaseExists(ctx context.Context, name string) (bool, error) {
	q := fmt.Sprintf("SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = '%s'", escapeSQL(name))
	out, err := m.query(ctx, q)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

func (m MariaDB) UserExists(ctx context.Context, name string) (bool, error) {
	q := fmt.Sprintf("SELECT User FROM mysql.user WHERE User = '%s' AND Host = 'localhost'", escapeSQL(name))
	out, err := m.query(ctx, q)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

func (m MariaDB) ExecDDL(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		res, err := m.Runner.Run(ctx, "mysql", "-e", stmt)
		if err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		if !res.Success() {
			return fmt.Errorf("mysql: %s", res.Diagnostic())
		}
	}
	return nil
}

func (m MariaDB) query(ctx context.Context, q string) (string, error) {
	res, err := m.Runner.Run(ctx, "mysql", "-N", "-B", "-e", q)
	if err != nil {
		return "", fmt.Errorf("mysql: %w", err)
	}
	if !res.Success() {
		return "", fmt.Errorf("mysql: %s", res.Diagnostic())
	}
	return strings.TrimSpace(res.Stdout), nil
}

// escapeSQL doubles single quotes. Identifiers come from validated
// configuration, so this is belt-level quoting for the CLI round trip.
func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var _ Database = MariaDB{}
