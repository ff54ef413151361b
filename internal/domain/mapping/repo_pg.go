package mapping

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/termbridge/termbridge/pkg/errs"
)

type pgRepo struct{ pool *pgxpool.Pool }

// NewPGRepo creates a Postgres-backed mapping repository. The EXACT-uniqueness
// invariant is enforced by a partial unique index on
// (source_code, target_system) WHERE confidence = 'EXACT'.
func NewPGRepo(pool *pgxpool.Pool) Repository {
	return &pgRepo{pool: pool}
}

const entryCols = `id, source_code, target_system, target_code, display, confidence, last_verified, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.SourceCode, &e.TargetSystem, &e.TargetCode,
		&e.Display, &e.Confidence, &e.LastVerified, &e.CreatedAt)
	return &e, err
}

func (r *pgRepo) Add(ctx context.Context, e *Entry) (*Entry, error) {
	stored := e.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO mapping_entry (id, source_code, target_system, target_code, display, confidence, last_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		stored.ID, stored.SourceCode, stored.TargetSystem, stored.TargetCode,
		stored.Display, stored.Confidence, stored.LastVerified).Scan(&stored.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, errs.Conflictf("EXACT mapping already exists for (%s, %s)", e.SourceCode, e.TargetSystem)
			case "23503":
				return nil, errs.NotFoundf("record %q", e.SourceCode)
			}
		}
		return nil, err
	}
	return stored, nil
}

func (r *pgRepo) ListBySource(ctx context.Context, sourceCode string) ([]*Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryCols+` FROM mapping_entry
		WHERE source_code = $1
		ORDER BY
			CASE confidence
				WHEN 'EXACT' THEN 0
				WHEN 'PROBABLE' THEN 1
				WHEN 'UNCERTAIN' THEN 2
				ELSE 3
			END,
			last_verified DESC NULLS LAST,
			created_at`, sourceCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgRepo) Remove(ctx context.Context, sourceCode, targetSystem, targetCode string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM mapping_entry
		WHERE source_code = $1 AND target_system = $2 AND COALESCE(target_code, '') = $3`,
		sourceCode, targetSystem, targetCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundf("mapping (%s, %s, %s)", sourceCode, targetSystem, targetCode)
	}
	return nil
}

func (r *pgRepo) CountBySource(ctx context.Context, sourceCode string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM mapping_entry WHERE source_code = $1`, sourceCode).Scan(&n)
	return n, err
}

func (r *pgRepo) DeleteBySource(ctx context.Context, sourceCode string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mapping_entry WHERE source_code = $1`, sourceCode)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
