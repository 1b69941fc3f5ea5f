package repository

import "fmt"

// Schema returns the idempotent DDL for the audit and snapshot tables.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.audit_events (
    ts DateTime64(3, 'UTC'),
    id String,
    kind LowCardinality(String),
    symbol LowCardinality(String),
    regime LowCardinality(String),
    payload String
) ENGINE = MergeTree
PARTITION BY toYYYYMMDD(ts)
ORDER BY (kind, ts, id)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.policy_snapshots (
    id String,
    regime LowCardinality(String),
    captured_at DateTime64(3, 'UTC'),
    tbl String,
    metadata String
) ENGINE = MergeTree
ORDER BY (regime, captured_at, id)`, database),
	}
}

// AuditTable and SnapshotTable return the qualified table names.
func AuditTable(database string) string    { return database + ".audit_events" }
func SnapshotTable(database string) string { return database + ".policy_snapshots" }
