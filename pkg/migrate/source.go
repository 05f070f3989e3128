package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultDir is where new migrations are written in a source checkout.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration files to run: the set compiled into the
// binary when dir is empty, otherwise the files under dir.
func Source(dir string) (fs.FS, error) {
	if strings.TrimSpace(dir) != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(embedded, "migrations")
}
