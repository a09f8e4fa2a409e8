// Package store persists merger runs and their duplicate-directory groups to
// a libsql results database. ResultsDB implements the merger's Sink interface,
// so it can sit next to (or instead of) the text reporter.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/treedupe/tdupe/merge"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// ResultsDB records runs and duplicate groups
type ResultsDB struct {
	db    *sql.DB
	runID uuid.UUID
}

// ConnectToDB opens a libsql database at the given path
func ConnectToDB(dbPath string) (*sql.DB, error) {
	dbURL := dbPath
	if !strings.HasPrefix(dbURL, "file:") {
		dbURL = "file:" + dbURL
	}

	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database %s: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to reach results database %s: %w", dbPath, err)
	}
	return db, nil
}

// NewResultsDB opens or initializes the results database at dbPath
func NewResultsDB(dbPath string) (*ResultsDB, error) {
	db, err := ConnectToDB(dbPath)
	if err != nil {
		return nil, err
	}

	provider := &ResultsDB{db: db}
	if err := provider.init(); err != nil {
		db.Close()
		return nil, err
	}
	return provider, nil
}

// init sets up the results tables
func (r *ResultsDB) init() error {
	createTables := []string{
		`CREATE TABLE IF NOT EXISTS runs (id TEXT PRIMARY KEY, started_at TEXT, roots TEXT)`,
		`CREATE TABLE IF NOT EXISTS dup_groups (id TEXT PRIMARY KEY, run_id TEXT, fingerprint TEXT, member_count INTEGER)`,
		`CREATE TABLE IF NOT EXISTS dup_dirs (group_id TEXT, path TEXT, depth INTEGER, file_count INTEGER)`,
	}
	for _, query := range createTables {
		if _, err := r.db.Exec(query); err != nil {
			return fmt.Errorf("failed to initialize results schema: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a merger run; subsequent EmitGroup calls are
// attributed to it.
func (r *ResultsDB) BeginRun(runID uuid.UUID, roots []string) error {
	r.runID = runID
	_, err := r.db.Exec("INSERT INTO runs (id, started_at, roots) VALUES (?, ?, ?)",
		runID.String(), time.Now().UTC().Format(time.RFC3339), strings.Join(roots, "\x00"))
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", runID, err)
	}
	return nil
}

// EmitGroup implements merge.Sink
func (r *ResultsDB) EmitGroup(group *merge.DuplicateGroup) error {
	groupID := uuid.New().String()

	_, err := r.db.Exec("INSERT INTO dup_groups (id, run_id, fingerprint, member_count) VALUES (?, ?, ?, ?)",
		groupID, r.runID.String(), fmt.Sprintf("%x", group.Fingerprint), len(group.Members))
	if err != nil {
		return fmt.Errorf("failed to insert duplicate group: %w", err)
	}

	for _, member := range group.Members {
		_, err := r.db.Exec("INSERT INTO dup_dirs (group_id, path, depth, file_count) VALUES (?, ?, ?, ?)",
			groupID, member.Path, member.Depth, member.FileCount)
		if err != nil {
			return fmt.Errorf("failed to insert group member %s: %w", member.Path, err)
		}
	}

	slog.Debug("stored duplicate group",
		"group", groupID,
		"fingerprint", fmt.Sprintf("%x", group.Fingerprint),
		"members", len(group.Members))

	return nil
}

// GroupCount returns the number of groups stored for a run
func (r *ResultsDB) GroupCount(runID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM dup_groups WHERE run_id = ?", runID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return count, nil
}

// GroupMembers returns the member paths of every group in a run, keyed by the
// group's stored fingerprint.
func (r *ResultsDB) GroupMembers(runID uuid.UUID) (map[string][]string, error) {
	rows, err := r.db.Query(
		`SELECT g.fingerprint, d.path FROM dup_groups g JOIN dup_dirs d ON d.group_id = g.id
		 WHERE g.run_id = ? ORDER BY d.depth`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	members := make(map[string][]string)
	for rows.Next() {
		var fingerprint, path string
		if err := rows.Scan(&fingerprint, &path); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members[fingerprint] = append(members[fingerprint], path)
	}
	return members, rows.Err()
}

// Close closes the results database connection
func (r *ResultsDB) Close() error {
	return r.db.Close()
}
