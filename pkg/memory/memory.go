// Package memory implements the Memory Store Adapter (C1): a tiered
// short/working/long-term record store backed by an embedded
// modernc.org/sqlite database, the local concrete implementation of the
// otherwise-opaque vector-store surface spec §1 describes. Modeled on
// codenerd's internal/store.LocalStore (table-backed keyword search plus a
// cosine-similarity fallback) and cortex's internal/store sqlite wiring,
// adapted from a generic agent memory store to spec §3's three-tier
// MemoryRecord and §4.11's tier-specific write operations.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codeready-toolchain/milton/pkg/config"
)

// Tier is one of the three MemoryRecord tiers (spec §3).
type Tier string

const (
	TierShort   Tier = "short"
	TierWorking Tier = "working"
	TierLong    Tier = "long"
)

// Record is one row across any tier.
type Record struct {
	ID        int64
	Tier      Tier
	Agent     string
	Category  string
	Content   string
	Context   map[string]any
	Tags      []string
	Importance float64
	CreatedAt time.Time
}

// Store is the embedded sqlite-backed memory adapter.
type Store struct {
	db        *sql.DB
	retention config.RetentionConfig
	log       *slog.Logger
}

// Open creates (if needed) and opens the memory database at path, applying
// the schema idempotently.
func Open(path string, retention config.RetentionConfig) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s := &Store{db: db, retention: retention, log: slog.With("component", "memory")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS memory_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tier TEXT NOT NULL,
	agent TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '{}',
	tags TEXT NOT NULL DEFAULT '[]',
	importance REAL NOT NULL DEFAULT 0,
	embedding BLOB,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_tier_created ON memory_records(tier, created_at);
CREATE INDEX IF NOT EXISTS idx_memory_agent ON memory_records(agent);
`)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// AddShortTerm inserts a short-term record for agent and purges rows older
// than the configured short-term TTL (spec §4.11: "on each write, purge
// rows older than 48h").
func (s *Store) AddShortTerm(ctx context.Context, agent, content string, recordContext map[string]any) error {
	if err := s.insert(ctx, TierShort, agent, "", content, recordContext, nil, 0); err != nil {
		return err
	}
	return s.purgeShortTerm(ctx)
}

func (s *Store) purgeShortTerm(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention.ShortTermTTL)
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE tier = ? AND created_at < ?`, TierShort, cutoff)
	if err != nil {
		s.log.Warn("short-term purge failed", "error", err)
	}
	return err
}

// GetRecentShortTerm returns short-term records for agent created within
// the last `hours` hours, newest first.
func (s *Store) GetRecentShortTerm(ctx context.Context, hours int, agent string) ([]Record, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.db.QueryContext(ctx, `
SELECT id, tier, agent, category, content, context, tags, importance, created_at
FROM memory_records
WHERE tier = ? AND agent = ? AND created_at >= ?
ORDER BY created_at DESC`, TierShort, agent, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// AddWorking inserts a working-tier record, the pre-promotion staging tier
// spec §4.11's compaction pass later reads from.
func (s *Store) AddWorking(ctx context.Context, agent, category, content string, importance float64, tags []string) error {
	return s.insert(ctx, TierWorking, agent, category, content, nil, tags, importance)
}

// AddLongTerm inserts a durable long-term record directly (bypassing the
// working-tier promotion path), used by callers that already know a fact is
// long-lived.
func (s *Store) AddLongTerm(ctx context.Context, category, summary string, importance float64, tags []string) error {
	return s.insert(ctx, TierLong, "", category, summary, nil, tags, importance)
}

func (s *Store) insert(ctx context.Context, tier Tier, agent, category, content string, recordContext map[string]any, tags []string, importance float64) error {
	ctxJSON, err := json.Marshal(valueOrEmpty(recordContext))
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(valueOrEmptySlice(tags))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO memory_records (tier, agent, category, content, context, tags, importance, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tier, agent, category, content, string(ctxJSON), string(tagsJSON), importance, time.Now())
	return err
}

func valueOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func valueOrEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Search performs a keyword match over content and tags (a row matches if
// any keyword does), optionally scoped to a single tier, returning up to k
// results newest first; how many keywords a row matches does not affect
// the order. tier == "" searches across all tiers.
func (s *Store) Search(ctx context.Context, query string, tier Tier, k int) ([]Record, error) {
	if k <= 0 {
		k = 10
	}
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []any
	for _, kw := range keywords {
		conditions = append(conditions, "(LOWER(content) LIKE ? OR LOWER(tags) LIKE ?)")
		args = append(args, "%"+kw+"%", "%"+kw+"%")
	}

	q := "SELECT id, tier, agent, category, content, context, tags, importance, created_at FROM memory_records WHERE (" +
		strings.Join(conditions, " OR ") + ")"
	if tier != "" {
		q += " AND tier = ?"
		args = append(args, tier)
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stats reports the store's size for the system-state endpoint: how many
// records it holds and an approximate resident size in megabytes, derived
// from sqlite's own page accounting rather than an in-process estimate.
func (s *Store) Stats(ctx context.Context) (vectorCount int, memoryMB float64, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_records`).Scan(&vectorCount); err != nil {
		return 0, 0, err
	}
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return vectorCount, 0, err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return vectorCount, 0, err
	}
	memoryMB = float64(pageCount*pageSize) / (1024 * 1024)
	return vectorCount, memoryMB, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var ctxJSON, tagsJSON string
		if err := rows.Scan(&r.ID, &r.Tier, &r.Agent, &r.Category, &r.Content, &ctxJSON, &tagsJSON, &r.Importance, &r.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(ctxJSON), &r.Context)
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, rows.Err()
}
