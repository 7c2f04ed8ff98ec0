package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"channel-assistant/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	telegram_id BIGINT NOT NULL UNIQUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS drafts (
	id           BIGSERIAL PRIMARY KEY,
	user_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	idea_text    TEXT NOT NULL DEFAULT '',
	payload_kind TEXT NOT NULL DEFAULT '',
	payload_text TEXT NOT NULL,
	media_kind   TEXT NOT NULL DEFAULT '',
	media_ref    TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS drafts_user_created_idx ON drafts (user_id, created_at, id);
`

// Postgres is a DraftStore on a relational users/drafts schema.
type Postgres struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgres opens a pgx-backed database and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("repository: postgres dsn must not be empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping postgres: %w", err)
	}
	p := &Postgres{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
			p.schemaErr = fmt.Errorf("repository: create schema: %w", err)
		}
	})
	return p.schemaErr
}

// userRowID returns the users.id for a telegram id, inserting the row if needed.
func (p *Postgres) userRowID(ctx context.Context, telegramID int64) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO users (telegram_id) VALUES ($1)
		ON CONFLICT (telegram_id) DO UPDATE SET telegram_id = EXCLUDED.telegram_id
		RETURNING id`, telegramID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) Create(ctx context.Context, userID int64, idea string, payload domain.Payload) (domain.DraftID, error) {
	uid, err := p.userRowID(ctx, userID)
	if err != nil {
		return "", storageErr("Create", fmt.Errorf("user: %w", err))
	}
	kind, text, mkind, mref := payloadColumns(payload)

	var id int64
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO drafts (user_id, idea_text, payload_kind, payload_text, media_kind, media_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`, uid, idea, kind, text, mkind, mref).Scan(&id)
	if err != nil {
		return "", storageErr("Create", err)
	}
	return formatRowID(id), nil
}

func (p *Postgres) ListAll(ctx context.Context, userID int64) ([]domain.Draft, error) {
	if _, err := p.userRowID(ctx, userID); err != nil {
		return nil, storageErr("ListAll", fmt.Errorf("user: %w", err))
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT d.id, d.idea_text, d.payload_kind, d.payload_text, d.media_kind, d.media_ref, d.created_at
		FROM drafts d JOIN users u ON u.id = d.user_id
		WHERE u.telegram_id = $1
		ORDER BY d.created_at ASC, d.id ASC`, userID)
	if err != nil {
		return nil, storageErr("ListAll", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Draft
	for rows.Next() {
		d, err := scanDraft(rows, userID)
		if err != nil {
			return nil, storageErr("ListAll", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListAll", err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, userID int64, id domain.DraftID) (domain.Draft, error) {
	rowID, ok := parseRowID(id)
	if !ok {
		return domain.Draft{}, domain.ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT d.id, d.idea_text, d.payload_kind, d.payload_text, d.media_kind, d.media_ref, d.created_at
		FROM drafts d JOIN users u ON u.id = d.user_id
		WHERE d.id = $1 AND u.telegram_id = $2`, rowID, userID)
	d, err := scanDraft(row, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Draft{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Draft{}, storageErr("Get", err)
	}
	return d, nil
}

func (p *Postgres) UpdatePayload(ctx context.Context, userID int64, id domain.DraftID, payload domain.Payload) error {
	rowID, ok := parseRowID(id)
	if !ok {
		return domain.ErrNotFound
	}
	kind, text, mkind, mref := payloadColumns(payload)
	res, err := p.db.ExecContext(ctx, `
		UPDATE drafts SET payload_kind = $1, payload_text = $2, media_kind = $3, media_ref = $4
		WHERE id = $5 AND user_id = (SELECT id FROM users WHERE telegram_id = $6)`,
		kind, text, mkind, mref, rowID, userID)
	if err != nil {
		return storageErr("UpdatePayload", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("UpdatePayload", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, userID int64, id domain.DraftID) (bool, error) {
	uid, err := p.userRowID(ctx, userID)
	if err != nil {
		return false, storageErr("Delete", fmt.Errorf("user: %w", err))
	}
	rowID, ok := parseRowID(id)
	if !ok {
		return false, nil
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1 AND user_id = $2`, rowID, uid)
	if err != nil {
		return false, storageErr("Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("Delete", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner, userID int64) (domain.Draft, error) {
	var (
		id                      int64
		d                       domain.Draft
		kind, text, mkind, mref string
	)
	if err := row.Scan(&id, &d.Idea, &kind, &text, &mkind, &mref, &d.CreatedAt); err != nil {
		return domain.Draft{}, err
	}
	d.ID = formatRowID(id)
	d.UserID = userID
	d.Payload = payloadFromColumns(kind, text, mkind, mref)
	return d, nil
}

func formatRowID(id int64) domain.DraftID {
	return domain.DraftID(strconv.FormatInt(id, 10))
}

func parseRowID(id domain.DraftID) (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
