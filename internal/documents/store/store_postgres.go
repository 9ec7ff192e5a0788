package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"taskboard/internal/documents/models"
	"taskboard/internal/permission"
	"taskboard/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const selectColumns = `id, collection_id, database_id, data::text, to_jsonb(permissions)::text, version, created_at, updated_at`

// readScope admits rows without explicit grants, rows granting one of the
// principal's read roles, and everything for elevated principals.
const readScope = `($%d OR cardinality(permissions) = 0 OR permissions && $%d::text[])`

// PostgresStore persists documents as JSONB rows keyed by database, collection and id.
type PostgresStore struct {
	db         *sql.DB
	databaseID string
}

func NewPostgres(db *sql.DB, databaseID string) *PostgresStore {
	return &PostgresStore{db: db, databaseID: databaseID}
}

func (s *PostgresStore) Create(ctx context.Context, p permission.Principal, doc *models.Document) error {
	if !authenticated(p) {
		return sentinel.ErrForbidden
	}
	if err := validateKey(doc.CollectionID, doc.ID); err != nil {
		return err
	}
	doc.DatabaseID = s.databaseID
	if doc.Version == 0 {
		doc.Version = 1
	}
	perms := doc.Permissions
	if perms == nil {
		perms = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (database_id, collection_id, id, data, permissions, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5::text[], $6, $7, $8)
	`, s.databaseID, doc.CollectionID, doc.ID, string(doc.Data), pq.Array(perms), doc.Version, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, p permission.Principal, collectionID, id string) (*models.Document, error) {
	if err := validateKey(collectionID, id); err != nil {
		return nil, err
	}
	query := `SELECT ` + selectColumns + ` FROM documents
		WHERE database_id = $1 AND collection_id = $2 AND id = $3 AND ` + fmt.Sprintf(readScope, 4, 5)
	row := s.db.QueryRowContext(ctx, query, s.databaseID, collectionID, id, p.Elevated, pq.Array(permission.ReadRoles(p)))
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Update locks the row, checks the update grant and version, then merges patch
// into the JSONB data in one statement.
func (s *PostgresStore) Update(ctx context.Context, p permission.Principal, collectionID, id string, patch map[string]any, expectedVersion int64, now time.Time) (*models.Document, error) {
	if err := validateKey(collectionID, id); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + selectColumns + ` FROM documents
		WHERE database_id = $1 AND collection_id = $2 AND id = $3 AND ` + fmt.Sprintf(readScope, 4, 5) + `
		FOR UPDATE`
	current, err := scanDocument(tx.QueryRowContext(ctx, query, s.databaseID, collectionID, id, p.Elevated, pq.Array(permission.ReadRoles(p))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock document: %w", err)
	}
	writable, err := allows(current, permission.ActionUpdate, p)
	if err != nil {
		return nil, err
	}
	if !writable {
		return nil, sentinel.ErrForbidden
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: version %d, expected %d", sentinel.ErrConflict, current.Version, expectedVersion)
	}

	updated, err := scanDocument(tx.QueryRowContext(ctx, `
		UPDATE documents
		SET data = data || $4::jsonb, version = version + 1, updated_at = $5
		WHERE database_id = $1 AND collection_id = $2 AND id = $3
		RETURNING `+selectColumns,
		s.databaseID, collectionID, id, string(payload), now))
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) List(ctx context.Context, p permission.Principal, collectionID string, filters ...models.Filter) ([]*models.Document, error) {
	if !models.ValidID(collectionID) {
		return nil, fmt.Errorf("%w: collection %q", sentinel.ErrInvalidQuery, collectionID)
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	args := []any{s.databaseID, collectionID, p.Elevated, pq.Array(permission.ReadRoles(p))}
	var where strings.Builder
	where.WriteString("database_id = $1 AND collection_id = $2 AND ")
	where.WriteString(fmt.Sprintf(readScope, 3, 4))
	for _, f := range filters {
		args = append(args, f.Field, f.Value)
		where.WriteString(fmt.Sprintf(" AND data->>$%d = $%d", len(args)-1, len(args)))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM documents WHERE `+where.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc   models.Document
		data  string
		perms string
	)
	if err := row.Scan(&doc.ID, &doc.CollectionID, &doc.DatabaseID, &data, &perms, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Data = json.RawMessage(data)
	if err := json.Unmarshal([]byte(perms), &doc.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	return &doc, nil
}
