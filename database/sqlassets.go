// Package sqlassets embeds the rentals DDL so binaries can migrate a database
// without shipping SQL files alongside them.
package sqlassets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed schema/rentals/*.sql
var rentals embed.FS

// Migration is one embedded DDL file. Version is the numeric file prefix.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// RentalsMigrations returns the rentals migrations ordered by version.
// Files must be named NNNN_description.sql.
func RentalsMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(rentals, "schema/rentals")
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".sql")
		version, name, ok := strings.Cut(base, "_")
		if !ok || version == "" || name == "" {
			return nil, fmt.Errorf("migration %s: expected NNNN_description.sql", e.Name())
		}
		body, err := fs.ReadFile(rentals, path.Join("schema/rentals", e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %s", out[i].Version)
		}
	}
	return out, nil
}
