package cli

import (
	"fmt"
	"io"
	"os"
)

// Migrator applies pending schema migrations.
type Migrator interface {
	Up() (uint, error)
	Close() error
}

// MigrateCommand applies migrations and prints the schema version.
func MigrateCommand(m Migrator, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	defer func() {
		if err := m.Close(); err != nil {
			fmt.Fprintf(stderr, "close migrator: %v\n", err)
		}
	}()
	version, err := m.Up()
	if err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "schema at version %d\n", version)
	return 0
}
