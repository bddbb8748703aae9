package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: groups, files, members, actions",
		SQL: `
CREATE TABLE IF NOT EXISTS dup_groups (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  group_type TEXT NOT NULL,
  resolution_status TEXT NOT NULL,
  resolution_strategy TEXT NOT NULL,
  auto_resolve_enabled INTEGER NOT NULL DEFAULT 1,
  master_file_id TEXT NOT NULL,
  total_files INTEGER NOT NULL,
  total_size_bytes INTEGER NOT NULL,
  claimed_by TEXT,
  claimed_at TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  simhash INTEGER NOT NULL,
  size_bytes INTEGER NOT NULL,
  uploader_id TEXT NOT NULL,
  blob_key TEXT,
  group_id TEXT,
  uploaded_at TEXT NOT NULL,
  FOREIGN KEY (group_id) REFERENCES dup_groups(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS group_members (
  group_id TEXT NOT NULL,
  file_id TEXT NOT NULL,
  keep_flag INTEGER NOT NULL DEFAULT 0,
  added_at TEXT NOT NULL,
  UNIQUE(file_id),
  UNIQUE(group_id, file_id),
  FOREIGN KEY (group_id) REFERENCES dup_groups(id) ON DELETE CASCADE,
  FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS resolution_actions (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  strategy TEXT NOT NULL,
  actor TEXT NOT NULL,
  outcome TEXT NOT NULL,
  deleted_count INTEGER NOT NULL,
  reclaimed_bytes INTEGER NOT NULL,
  instruction_digest TEXT,
  note TEXT,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_tenant ON files(tenant_id);
CREATE INDEX IF NOT EXISTS idx_files_content_hash ON files(tenant_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_files_group ON files(group_id);
CREATE INDEX IF NOT EXISTS idx_groups_tenant_status ON dup_groups(tenant_id, resolution_status);
CREATE INDEX IF NOT EXISTS idx_groups_tenant_type ON dup_groups(tenant_id, group_type);
CREATE INDEX IF NOT EXISTS idx_members_group ON group_members(group_id);
CREATE INDEX IF NOT EXISTS idx_actions_group ON resolution_actions(group_id, created_at);
`,
	},
	{
		Version:     2,
		Description: "claim recovery index on in-progress groups",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_groups_claimed_at ON dup_groups(resolution_status, claimed_at);
CREATE INDEX IF NOT EXISTS idx_groups_updated_desc ON dup_groups(tenant_id, updated_at DESC);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied migration version, or 0 if none.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigrations applies all pending migrations in order.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// MigrationPlan returns the current migration status without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}

	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	available := 0
	if len(sorted) > 0 {
		available = sorted[len(sorted)-1].Version
	}

	var pending []MigrationInfo
	for _, m := range sorted {
		if m.Version > current {
			pending = append(pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}

	return &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: available,
		Pending:          pending,
	}, nil
}
