package record

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/termbridge/termbridge/pkg/errs"
)

type pgRepo struct{ pool *pgxpool.Pool }

// NewPGRepo creates a Postgres-backed record repository.
func NewPGRepo(pool *pgxpool.Pool) Repository {
	return &pgRepo{pool: pool}
}

const recCols = `code, display, description, category, system, synonyms, keywords`

func scanRecord(row pgx.Row) (*TerminologyRecord, error) {
	var rec TerminologyRecord
	err := row.Scan(&rec.Code, &rec.Display, &rec.Description, &rec.Category,
		&rec.System, &rec.Synonyms, &rec.Keywords)
	return &rec, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *pgRepo) Insert(ctx context.Context, rec *TerminologyRecord) (*TerminologyRecord, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO terminology_record (code, display, description, category, system, synonyms, keywords)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.Code, rec.Display, rec.Description, rec.Category, rec.System, rec.Synonyms, rec.Keywords)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.DuplicateCodef("record %q already exists", rec.Code)
		}
		return nil, err
	}
	return rec.Clone(), nil
}

func (r *pgRepo) Get(ctx context.Context, code string) (*TerminologyRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recCols+` FROM terminology_record WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFoundf("record %q", code)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *pgRepo) Update(ctx context.Context, code string, upd *Update) (*TerminologyRecord, error) {
	cur, err := r.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if upd.Display != nil {
		cur.Display = *upd.Display
	}
	if upd.Description != nil {
		cur.Description = *upd.Description
	}
	if upd.Category != nil {
		cur.Category = *upd.Category
	}
	if upd.System != nil {
		cur.System = *upd.System
	}
	if upd.Synonyms != nil {
		cur.Synonyms = append([]string(nil), upd.Synonyms...)
	}
	if upd.Keywords != nil {
		cur.Keywords = NormalizeKeywords(upd.Keywords)
	}
	cur.Normalize()
	if err := cur.Validate(); err != nil {
		return nil, err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE terminology_record
		SET display=$2, description=$3, category=$4, system=$5, synonyms=$6, keywords=$7, updated_at=NOW()
		WHERE code = $1`,
		code, cur.Display, cur.Description, cur.Category, cur.System, cur.Synonyms, cur.Keywords)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (r *pgRepo) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM terminology_record WHERE code = $1`, code)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return errs.Referencedf("record %q is referenced by mapping entries", code)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundf("record %q", code)
	}
	return nil
}

func (r *pgRepo) List(ctx context.Context, filter Filter, limit, offset int) ([]*TerminologyRecord, int, error) {
	where := ` WHERE ($1 = '' OR LOWER(category) = LOWER($1)) AND ($2 = '' OR LOWER(system) = LOWER($2))`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM terminology_record`+where,
		filter.Category, filter.System).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+recCols+` FROM terminology_record`+where+` ORDER BY code LIMIT $3 OFFSET $4`,
		filter.Category, filter.System, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*TerminologyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *pgRepo) All(ctx context.Context) ([]*TerminologyRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recCols+` FROM terminology_record ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*TerminologyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
