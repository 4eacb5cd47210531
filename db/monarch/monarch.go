// Package monarch applies ordered, named sets of sql migrations.
//
// Monarch tracks its own schema with itself: the first set it applies is the
// one that creates the migrations table.
package monarch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/monet/db"
)

const selfSet = "monarch"

// A Migration is a pair of statements; Up moves the schema forward a version
// and Down undoes it.
type Migration struct {
	Up   string
	Down string
}

// A Set is a named, ordered list of migrations.  The index of a migration in
// the list is its version.
type Set struct {
	Name       string
	Migrations []Migration
}

// A MigrationVersion records the application of one migration.
type MigrationVersion struct {
	Name      string
	Version   int
	Down      string
	AppliedAt time.Time `db:"applied_at"`
}

// A Manager applies migration sets to a database.
type Manager struct {
	db db.DB
}

// NewManager returns a manager for conn, bootstrapping the migrations table
// if this is the first time monarch has seen the database.
func NewManager(conn db.DB) (*Manager, error) {
	m := &Manager{db: conn}
	return m, m.bootstrap()
}

func (m *Manager) bootstrapMigrations() []Migration {
	return []Migration{
		{
			Up: `CREATE TABLE IF NOT EXISTS migrations (
					version int NOT NULL,
					name text NOT NULL,
					down text NOT NULL,
					applied_at datetime NOT NULL,
					PRIMARY KEY (version, name)
				);`,
			Down: `DROP TABLE migrations;`,
		},
		{
			Up:   `CREATE INDEX migration_name ON migrations (name, version);`,
			Down: `DROP INDEX migration_name;`,
		},
	}
}

func (m *Manager) bootstrap() error {
	migrations := m.bootstrapMigrations()
	// the table must exist before we can ask it what version we're at
	if _, err := m.db.Exec(migrations[0].Up); err != nil {
		return fmt.Errorf("bootstrapping monarch: %w", err)
	}
	return m.Upgrade(Set{Name: selfSet, Migrations: migrations})
}

// Apply upgrades each set in order, stopping at the first failure.
func (m *Manager) Apply(sets ...Set) error {
	for _, s := range sets {
		if err := m.Upgrade(s); err != nil {
			return err
		}
	}
	return nil
}

// Upgrade applies every migration in set newer than the recorded version.
func (m *Manager) Upgrade(set Set) error {
	current, err := m.GetVersion(set.Name)
	if err != nil {
		return err
	}

	for v, mig := range set.Migrations {
		if v <= current {
			continue
		}
		if _, err := m.db.Exec(mig.Up); err != nil {
			return fmt.Errorf("'%s' version %d: %w <%s>", set.Name, v, err, mig.Up)
		}
		// the schema has moved but if this fails the record of it hasn't;
		// there's no way to recover from that automatically.
		if err := m.addVersion(set.Name, v, mig.Down); err != nil {
			return fmt.Errorf("recording '%s' version %d: %w", set.Name, v, err)
		}
		slog.Debug("applied migration", "set", set.Name, "version", v)
	}
	return nil
}

// Downgrade reverts the most recent migration applied for name.
func (m *Manager) Downgrade(name string) error {
	var cur MigrationVersion
	q := `SELECT name, version, down, applied_at FROM migrations WHERE name=? ORDER BY version DESC LIMIT 1;`
	if err := m.db.Get(&cur, q, name); err != nil {
		return err
	}
	if cur.Version == 0 {
		return fmt.Errorf("cannot downgrade '%s' past version 0", name)
	}
	if _, err := m.db.Exec(cur.Down); err != nil {
		return fmt.Errorf("executing `%s` (%w)", cur.Down, err)
	}
	return m.removeVersion(name, cur.Version)
}

// GetVersion returns the latest applied version for set name, or -1 if
// nothing from that set has been applied.
func (m *Manager) GetVersion(name string) (version int, err error) {
	err = m.db.Get(&version, `SELECT COALESCE(max(version), -1) FROM migrations WHERE name=?;`, name)
	return version, err
}

// LatestVersions returns the current version of every known set.
func (m *Manager) LatestVersions() ([]MigrationVersion, error) {
	q := `WITH ranked AS (
		SELECT name, version, down, applied_at,
			rank() OVER (PARTITION BY name ORDER BY version DESC) AS rank
		FROM migrations
	) SELECT name, version, down, applied_at FROM ranked WHERE rank=1 ORDER BY name;`

	var mvs []MigrationVersion
	err := m.db.Select(&mvs, q)
	return mvs, err
}

func (m *Manager) addVersion(name string, version int, down string) error {
	_, err := m.db.Exec(`INSERT INTO migrations (version, name, applied_at, down) VALUES (?, ?, ?, ?);`,
		version, name, time.Now(), down)
	return err
}

func (m *Manager) removeVersion(name string, version int) error {
	_, err := m.db.Exec(`DELETE FROM migrations WHERE name=? AND version=?;`, name, version)
	return err
}
