package region

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/camper-budget/internal/db"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Stored is a persisted regional tax configuration row.
type Stored struct {
	pricing.TaxConfig
	UpdatedAt time.Time
}

// Repository persists regional tax configuration.
type Repository interface {
	List(ctx context.Context) ([]Stored, error)
	Get(ctx context.Context, region pricing.Region) (*Stored, error)
	Upsert(ctx context.Context, cfg pricing.TaxConfig) (Stored, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	DB db.DBTX
}

const columns = `region, tax_rate, tax_label, surcharge_rate, surcharge_applies, legal_text, updated_at`

func (r PGRepository) List(ctx context.Context) ([]Stored, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+columns+` FROM regional_tax_configs ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("list regional tax configs: %w", err)
	}
	defer rows.Close()
	var out []Stored
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns nil without error when the region has no row.
func (r PGRepository) Get(ctx context.Context, region pricing.Region) (*Stored, error) {
	s, err := scan(r.DB.QueryRow(ctx, `SELECT `+columns+` FROM regional_tax_configs WHERE region = $1`, string(region)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get regional tax config %s: %w", region, err)
	}
	return &s, nil
}

func (r PGRepository) Upsert(ctx context.Context, cfg pricing.TaxConfig) (Stored, error) {
	row := r.DB.QueryRow(ctx, `INSERT INTO regional_tax_configs
			(region, tax_rate, tax_label, surcharge_rate, surcharge_applies, legal_text, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (region) DO UPDATE SET
			tax_rate = EXCLUDED.tax_rate,
			tax_label = EXCLUDED.tax_label,
			surcharge_rate = EXCLUDED.surcharge_rate,
			surcharge_applies = EXCLUDED.surcharge_applies,
			legal_text = EXCLUDED.legal_text,
			updated_at = now()
		RETURNING `+columns,
		string(cfg.Region), db.Numeric(cfg.TaxRate), cfg.TaxLabel, db.Numeric(cfg.SurchargeRate), cfg.SurchargeApplies, cfg.LegalText)
	s, err := scan(row)
	if err != nil {
		return Stored{}, fmt.Errorf("upsert regional tax config %s: %w", cfg.Region, err)
	}
	return s, nil
}

func scan(row pgx.Row) (Stored, error) {
	var (
		s         Stored
		region    string
		taxRate   pgtype.Numeric
		surcharge pgtype.Numeric
	)
	if err := row.Scan(&region, &taxRate, &s.TaxLabel, &surcharge, &s.SurchargeApplies, &s.LegalText, &s.UpdatedAt); err != nil {
		return Stored{}, err
	}
	s.Region = pricing.Region(region)
	s.TaxRate = db.Decimal(taxRate)
	s.SurchargeRate = db.Decimal(surcharge)
	return s, nil
}
