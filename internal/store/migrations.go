package store

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

type migration struct {
	version  int
	name     string
	sql      string
	checksum string
}

func (m migration) String() string {
	return fmt.Sprintf("%03d_%s", m.version, m.name)
}

// migrator applies the numbered SQL files under migrations/ in version order.
// Each applied file is recorded with a checksum so that editing a shipped
// migration is detected on the next start instead of silently diverging.
type migrator struct {
	db    *sql.DB
	files fs.FS
}

func runMigrations(db *sql.DB) error {
	return migrator{db: db, files: migrationsFS}.run()
}

func (m migrator) run() error {
	if err := m.ensureTable(); err != nil {
		return err
	}

	all, err := m.load()
	if err != nil {
		return err
	}

	applied, err := m.applied()
	if err != nil {
		return err
	}

	pending := make([]migration, 0, len(all))
	for _, mig := range all {
		sum, ok := applied[mig.version]
		if !ok {
			pending = append(pending, mig)
			continue
		}
		if sum != mig.checksum {
			return fmt.Errorf("migration %s changed after it was applied (recorded %s, file %s)", mig, short(sum), short(mig.checksum))
		}
	}

	log.Debug().Int("applied", len(applied)).Int("pending", len(pending)).Msg("task schema status")
	for _, mig := range pending {
		if err := m.apply(mig); err != nil {
			return err
		}
		log.Info().Int("version", mig.version).Str("name", mig.name).Msg("applied migration")
	}

	return nil
}

func (m migrator) ensureTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	return nil
}

func (m migrator) load() ([]migration, error) {
	entries, err := fs.ReadDir(m.files, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	migrations := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		version, name, err := parseMigrationFilename(entry.Name())
		if err != nil {
			return nil, err
		}

		content, err := fs.ReadFile(m.files, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		sum := sha256.Sum256(content)
		migrations = append(migrations, migration{
			version:  version,
			name:     name,
			sql:      string(content),
			checksum: hex.EncodeToString(sum[:]),
		})
	}

	slices.SortFunc(migrations, func(a, b migration) int {
		return a.version - b.version
	})
	for i := 1; i < len(migrations); i++ {
		if migrations[i].version == migrations[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", migrations[i].version, migrations[i-1], migrations[i])
		}
	}

	return migrations, nil
}

func parseMigrationFilename(filename string) (int, string, error) {
	base := strings.TrimSuffix(filename, path.Ext(filename))
	prefix, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("invalid migration filename %q: expected '<version>_<name>.sql'", filename)
	}

	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", fmt.Errorf("invalid migration version in %q: %w", filename, err)
	}

	return version, name, nil
}

// applied maps each recorded version to its checksum.
func (m migrator) applied() (map[int]string, error) {
	rows, err := m.db.Query(`SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	sums := make(map[int]string)
	for rows.Next() {
		var (
			version int
			sum     string
		)
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		sums[version] = sum
	}

	return sums, rows.Err()
}

func (m migrator) apply(mig migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", mig, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.sql); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", mig, err)
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)`,
		mig.version, mig.name, mig.checksum); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", mig, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", mig, err)
	}

	return nil
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
