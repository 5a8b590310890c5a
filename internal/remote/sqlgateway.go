package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/tessadoran/stride/internal/record"
)

// SQLGateway implements Gateway over a database/sql connection.
//
// Production deployments open a Turso (libSQL) database over the network
// with OpenTurso; tests drive the identical code over an embedded SQLite
// file. There is deliberately a single gateway implementation: the same
// SQL runs against either backend.
type SQLGateway struct {
	conn *sql.DB
}

// OpenTurso connects to a remote Turso database.
//
// url is the libsql:// database URL; authToken may be empty for databases
// that allow anonymous access.
func OpenTurso(url, authToken string) (*SQLGateway, error) {
	dsn := url
	if authToken != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		dsn = fmt.Sprintf("%s%sauthToken=%s", url, sep, authToken)
	}

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetConnMaxIdleTime(time.Minute)

	return &SQLGateway{conn: conn}, nil
}

// NewSQLGateway wraps an existing connection. The caller keeps ownership
// of conn's lifecycle unless Close is used.
func NewSQLGateway(conn *sql.DB) *SQLGateway {
	return &SQLGateway{conn: conn}
}

// Close closes the underlying connection.
func (g *SQLGateway) Close() error {
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

// InitSchema creates the remote tables if they don't exist. The remote
// schema mirrors the local entity tables minus the sync_status column:
// the remote store has no notion of pending state.
//
// Idempotent - safe to call multiple times.
func (g *SQLGateway) InitSchema(ctx context.Context) error {
	var b strings.Builder
	for _, table := range record.Tables() {
		fmt.Fprintf(&b, `
	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_owner ON %[1]s(owner_id);
	`, table)
	}

	if _, err := g.conn.ExecContext(ctx, b.String()); err != nil {
		return &RemoteError{Op: "init", Err: classify(err)}
	}
	return nil
}

// Insert implements Gateway. The write is an upsert keyed by the
// client-assigned id, which makes replayed creates idempotent.
func (g *SQLGateway) Insert(ctx context.Context, rec record.Record) error {
	payload, err := record.Encode(stripStatus(rec))
	if err != nil {
		return err
	}

	m := rec.Meta()
	query := fmt.Sprintf(`
	INSERT INTO %s (id, owner_id, created_at, updated_at, payload)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		updated_at = excluded.updated_at,
		payload = excluded.payload
	WHERE %s.owner_id = excluded.owner_id
	`, rec.Table(), rec.Table())

	_, err = g.conn.ExecContext(ctx, query,
		m.ID,
		m.OwnerID,
		m.CreatedAt.Format(time.RFC3339Nano),
		m.UpdatedAt.Format(time.RFC3339Nano),
		string(payload),
	)
	if err != nil {
		return &RemoteError{Op: "insert", Table: rec.Table(), Err: classify(err)}
	}
	return nil
}

// Update implements Gateway. The owner scope is part of the WHERE clause,
// so a record belonging to another user reads as absent.
func (g *SQLGateway) Update(ctx context.Context, rec record.Record) error {
	payload, err := record.Encode(stripStatus(rec))
	if err != nil {
		return err
	}

	m := rec.Meta()
	query := fmt.Sprintf(`
	UPDATE %s SET updated_at = ?, payload = ?
	WHERE id = ? AND owner_id = ?
	`, rec.Table())

	res, err := g.conn.ExecContext(ctx, query,
		m.UpdatedAt.Format(time.RFC3339Nano),
		string(payload),
		m.ID,
		m.OwnerID,
	)
	if err != nil {
		return &RemoteError{Op: "update", Table: rec.Table(), Err: classify(err)}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &RemoteError{Op: "update", Table: rec.Table(), Err: classify(err)}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Gateway. Deleting an absent record returns nil so that
// replayed deletes stay idempotent.
func (g *SQLGateway) Delete(ctx context.Context, table record.Table, owner, id string) error {
	if !table.IsValid() {
		return fmt.Errorf("unknown table: %q", table)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND owner_id = ?`, table)
	if _, err := g.conn.ExecContext(ctx, query, id, owner); err != nil {
		return &RemoteError{Op: "delete", Table: table, Err: classify(err)}
	}
	return nil
}

// SelectAll implements Gateway.
func (g *SQLGateway) SelectAll(ctx context.Context, table record.Table, owner string) ([]record.Record, error) {
	if !table.IsValid() {
		return nil, fmt.Errorf("unknown table: %q", table)
	}

	query := fmt.Sprintf(`SELECT payload FROM %s WHERE owner_id = ? ORDER BY rowid ASC`, table)
	rows, err := g.conn.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, &RemoteError{Op: "select", Table: table, Err: classify(err)}
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, &RemoteError{Op: "select", Table: table, Err: classify(err)}
		}
		rec, err := record.Decode(table, []byte(payload))
		if err != nil {
			return nil, err
		}
		// Remote rows carry no sync state; records arriving from a pull
		// are synced by definition until proven otherwise.
		rec.Meta().SyncStatus = record.StatusSynced
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &RemoteError{Op: "select", Table: table, Err: classify(err)}
	}

	return recs, nil
}

// Ping implements Gateway.
func (g *SQLGateway) Ping(ctx context.Context) error {
	if err := g.conn.PingContext(ctx); err != nil {
		return &RemoteError{Op: "ping", Err: classify(err)}
	}
	return nil
}

// stripStatus returns a copy of rec stamped synced. The remote payload must
// not carry one device's pending or conflict state, and stamping it synced
// means SelectAll hands back records that read as already reconciled.
func stripStatus(rec record.Record) record.Record {
	clone, err := record.Clone(rec)
	if err != nil {
		// Clone only fails on a marshal error, which Encode will surface
		// to the caller immediately afterwards.
		return rec
	}
	clone.Meta().SyncStatus = record.StatusSynced
	return clone
}

// classify maps raw driver errors onto the gateway sentinels so callers can
// test with errors.Is. The libsql driver surfaces a rejected auth token as a
// plain HTTP status error, so the match is on the message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "unauthorized", "authentication"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return err
}

// IsNotFound reports whether err is the remote not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
