package migrate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir runs ValidateFS against the files on disk under dir.
func ValidateDir(dir string) (int, error) {
	if dir == "" {
		return 0, errors.New("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every .sql file at the root of fsys: the name must be
// <YYYYMMDDHHMMSS>_<slug>.sql, versions must be unique and the goose
// annotations must be well formed. It returns how many files it checked.
func ValidateFS(fsys fs.FS) (int, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}

	versions := make(map[string]string, len(files))
	for _, name := range files {
		match := migrationName.FindStringSubmatch(path.Base(name))
		if match == nil {
			return 0, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if other, dup := versions[match[1]]; dup {
			return 0, fmt.Errorf("migrations %q and %q share version %s", other, name, match[1])
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return 0, fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return 0, fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return len(versions), nil
}

// checkAnnotations walks the goose comment lines in order. Up must come first,
// Down exactly once after it, and statement blocks may not nest or span the
// Up/Down boundary.
func checkAnnotations(body []byte) error {
	var sawUp, sawDown, inBlock bool

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "-- +goose") {
			continue
		}
		switch strings.TrimSpace(strings.TrimPrefix(line, "-- +goose")) {
		case "Up":
			if sawUp || sawDown {
				return errors.New("unexpected Up annotation")
			}
			sawUp = true
		case "Down":
			if !sawUp {
				return errors.New("Down declared before Up")
			}
			if sawDown || inBlock {
				return errors.New("unexpected Down annotation")
			}
			sawDown = true
		case "StatementBegin":
			if inBlock {
				return errors.New("nested StatementBegin")
			}
			inBlock = true
		case "StatementEnd":
			if !inBlock {
				return errors.New("StatementEnd without StatementBegin")
			}
			inBlock = false
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	switch {
	case !sawUp:
		return errors.New("missing Up annotation")
	case !sawDown:
		return errors.New("missing Down annotation")
	case inBlock:
		return errors.New("unterminated StatementBegin")
	}
	return nil
}
