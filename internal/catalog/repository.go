package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/camper-budget/internal/db"
	"github.com/noah-isme/camper-budget/internal/packs"
)

// Repository reads catalog rows.
type Repository interface {
	ListActive(ctx context.Context, category Category) ([]Option, error)
	ByIDs(ctx context.Context, ids []uuid.UUID) ([]Option, error)
	PackMembership(ctx context.Context) (packs.Membership, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	DB db.DBTX
}

const optionColumns = `id, category, name, standard_price, export_price, active, sort_order`

func (r PGRepository) ListActive(ctx context.Context, category Category) ([]Option, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+optionColumns+`
		FROM catalog_options
		WHERE category = $1 AND active
		ORDER BY sort_order, name`, string(category))
	if err != nil {
		return nil, fmt.Errorf("list %s options: %w", category, err)
	}
	return collectOptions(rows)
}

func (r PGRepository) ByIDs(ctx context.Context, ids []uuid.UUID) ([]Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		params = append(params, db.UUID(id))
	}
	rows, err := r.DB.Query(ctx, `SELECT `+optionColumns+`
		FROM catalog_options
		WHERE id = ANY($1)`, params)
	if err != nil {
		return nil, fmt.Errorf("load options by id: %w", err)
	}
	return collectOptions(rows)
}

func (r PGRepository) PackMembership(ctx context.Context) (packs.Membership, error) {
	rows, err := r.DB.Query(ctx, `SELECT pack_id, option_id FROM pack_components ORDER BY pack_id`)
	if err != nil {
		return nil, fmt.Errorf("load pack membership: %w", err)
	}
	defer rows.Close()
	m := packs.Membership{}
	for rows.Next() {
		var packID, optionID pgtype.UUID
		if err := rows.Scan(&packID, &optionID); err != nil {
			return nil, err
		}
		pack := db.FromUUID(packID)
		m[pack] = append(m[pack], db.FromUUID(optionID))
	}
	return m, rows.Err()
}

func collectOptions(rows pgx.Rows) ([]Option, error) {
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var (
			id        pgtype.UUID
			category  string
			opt       Option
			standard  pgtype.Numeric
			export    pgtype.Numeric
			sortOrder int32
		)
		if err := rows.Scan(&id, &category, &opt.Name, &standard, &export, &opt.Active, &sortOrder); err != nil {
			return nil, err
		}
		opt.ID = db.FromUUID(id)
		opt.Category = Category(category)
		opt.StandardPrice = db.Decimal(standard)
		opt.ExportPrice = db.NullableDecimal(export)
		opt.SortOrder = int(sortOrder)
		out = append(out, opt)
	}
	return out, rows.Err()
}
