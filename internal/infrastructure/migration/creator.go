package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var (
	upTemplate = template.Must(template.New("up").Parse(`-- Migration: {{.Name}}
-- Created: {{.Created}}
{{- if .Description}}
-- Description: {{.Description}}
{{- end}}

-- Every ledger table carries tenant_id; index it first in composite indexes.

`))
	downTemplate = template.Must(template.New("down").Parse(`-- Migration: {{.Name}} (Rollback)
-- Created: {{.Created}}

`))
)

// MigrationInfo describes one migration pair on disk
type MigrationInfo struct {
	Version  uint64
	Name     string
	UpPath   string
	DownPath string // empty when the pair has no down file
}

// BaseName is the file name without direction and extension
func (i MigrationInfo) BaseName() string {
	return fmt.Sprintf("%d_%s", i.Version, i.Name)
}

type templateData struct {
	Name        string
	Description string
	Created     string
}

// CreateMigration writes an empty up/down pair versioned by the current time
func CreateMigration(dir, name, description string) (*MigrationInfo, error) {
	return createMigrationAt(dir, name, description, time.Now().UTC())
}

func createMigrationAt(dir, name, description string, now time.Time) (*MigrationInfo, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version, err := strconv.ParseUint(now.Format(versionLayout), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to derive version: %w", err)
	}
	existing, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}
	for _, m := range existing {
		if m.Version >= version {
			version = m.Version + 1
		}
	}

	info := &MigrationInfo{Version: version, Name: slug}
	info.UpPath = filepath.Join(dir, info.BaseName()+".up.sql")
	info.DownPath = filepath.Join(dir, info.BaseName()+".down.sql")

	data := templateData{Name: name, Description: description, Created: now.Format(time.RFC3339)}
	if err := writeTemplate(info.UpPath, upTemplate, data); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(info.DownPath, downTemplate, data); err != nil {
		_ = os.Remove(info.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return info, nil
}

func writeTemplate(path string, tmpl *template.Template, data templateData) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// sanitizeName lowercases the name and collapses separators into single
// underscores, dropping every other character
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if s := b.String(); len(s) > 0 && s[len(s)-1] != '_' {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ListMigrations returns the migration pairs in dir ordered by version. A
// missing directory yields an empty list.
func ListMigrations(dir string) ([]MigrationInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []MigrationInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[uint64]*MigrationInfo)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, up := strings.CutSuffix(entry.Name(), ".up.sql")
		if !up {
			var down bool
			if base, down = strings.CutSuffix(entry.Name(), ".down.sql"); !down {
				continue
			}
		}
		rawVersion, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(rawVersion, 10, 64)
		if err != nil {
			continue
		}
		info, seen := byVersion[version]
		if !seen {
			info = &MigrationInfo{Version: version, Name: name}
			byVersion[version] = info
		}
		path := filepath.Join(dir, entry.Name())
		if up {
			info.UpPath = path
		} else {
			info.DownPath = path
		}
	}

	out := make([]MigrationInfo, 0, len(byVersion))
	for _, info := range byVersion {
		if info.UpPath == "" {
			return nil, fmt.Errorf("migration %s has no up file", info.BaseName())
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
