package record

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeev/jeev/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, owner_email, patient_health_id, record_type, title, description,
	data, created_at, updated_at`

func (r *repoPG) scanRow(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := row.Scan(&rec.ID, &rec.OwnerEmail, &rec.PatientHealthID, &rec.RecordType,
		&rec.Title, &rec.Description, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &rec, err
}

func (r *repoPG) Add(ctx context.Context, rec *MedicalRecord) (string, error) {
	if err := rec.prepare(time.Now()); err != nil {
		return "", err
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_records (id, owner_email, patient_health_id, record_type, title,
			description, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.OwnerEmail, rec.PatientHealthID, rec.RecordType, rec.Title,
		rec.Description, rec.Data, rec.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "medical_records_id_key" {
		return "", ErrDuplicateID
	}
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*MedicalRecord, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
}

func (r *repoPG) ListByHealthID(ctx context.Context, healthID string) ([]*MedicalRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM medical_records WHERE patient_health_id = $1 ORDER BY seq`, healthID)
}

func (r *repoPG) ListByOwner(ctx context.Context, email string) ([]*MedicalRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM medical_records WHERE owner_email = $1 ORDER BY seq`, email)
}

func (r *repoPG) list(ctx context.Context, sql string, arg string) ([]*MedicalRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*MedicalRecord{}
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// Update merges p.Data into the stored document with jsonb concatenation,
// which replaces top-level keys and keeps the rest.
func (r *repoPG) Update(ctx context.Context, id string, p Patch) (bool, error) {
	data := p.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records SET
			record_type = COALESCE($2, record_type),
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			data = data || $5::jsonb,
			updated_at = NOW()
		WHERE id = $1`,
		id, p.RecordType, p.Title, p.Description, data)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
