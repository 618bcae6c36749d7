package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/camper-budget/internal/db"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Repository persists budgets and their line items.
type Repository interface {
	OpportunityExists(ctx context.Context, opportunityID uuid.UUID) (bool, error)
	// CreateVersion stores d as the new primary version of its opportunity and
	// returns the budget plus the IDs of the budgets it demoted.
	CreateVersion(ctx context.Context, d Draft) (Budget, []uuid.UUID, error)
	// UpdateVersion rewrites the breakdown and line items of an existing budget.
	UpdateVersion(ctx context.Context, id uuid.UUID, d Draft) (Budget, error)
	// SetPrimary makes id the only primary budget of its opportunity and
	// returns the IDs of the budgets that lost the flag.
	SetPrimary(ctx context.Context, id uuid.UUID) (Budget, []uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (Budget, error)
	ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]Budget, error)
	Primary(ctx context.Context, opportunityID uuid.UUID) (Budget, error)
}

// Pool is what PGRepository needs from *pgxpool.Pool.
type Pool interface {
	db.DBTX
	db.TxBeginner
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	Pool Pool
}

const budgetColumns = `id, opportunity_id, version, is_primary, is_historical, region, selection,
	base_price, packs_total, electric_price, additionals_total, custom_items_total, optionals_total,
	gross_total, percentage_discount_amount, fixed_discount, total_after_discounts,
	tax_rate, tax_label, tax_base, tax_amount, final_total,
	surcharge_rate, surcharge_amount, total_with_surcharge, legal_text, created_at, updated_at`

var lineItemColumns = []string{
	"budget_id", "position", "kind", "option_id", "name",
	"unit_price", "quantity", "line_total", "is_custom", "is_discount",
}

func (r PGRepository) OpportunityExists(ctx context.Context, opportunityID uuid.UUID) (bool, error) {
	var exists bool
	err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM opportunities WHERE id = $1)`, db.UUID(opportunityID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check opportunity: %w", err)
	}
	return exists, nil
}

func (r PGRepository) CreateVersion(ctx context.Context, d Draft) (Budget, []uuid.UUID, error) {
	var (
		created Budget
		demoted []uuid.UUID
	)
	err := db.WithTx(ctx, r.Pool, func(tx pgx.Tx) error {
		oppID := db.UUID(d.OpportunityID)
		var locked pgtype.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM opportunities WHERE id = $1 FOR UPDATE`, oppID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOpportunityNotFound
			}
			return fmt.Errorf("lock opportunity: %w", err)
		}

		var version int32
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM budgets WHERE opportunity_id = $1`, oppID).Scan(&version); err != nil {
			return fmt.Errorf("next budget version: %w", err)
		}

		rows, err := tx.Query(ctx, `UPDATE budgets
			SET is_primary = FALSE, is_historical = TRUE, updated_at = now()
			WHERE opportunity_id = $1 AND (is_primary OR NOT is_historical)
			RETURNING id`, oppID)
		if err != nil {
			return fmt.Errorf("demote budgets: %w", err)
		}
		demoted, err = collectIDs(rows)
		if err != nil {
			return fmt.Errorf("demote budgets: %w", err)
		}

		selection, err := json.Marshal(d.Selection)
		if err != nil {
			return fmt.Errorf("encode selection: %w", err)
		}
		b := d.Breakdown
		row := tx.QueryRow(ctx, `INSERT INTO budgets (
				opportunity_id, version, is_primary, is_historical, region, selection,
				percentage_discount, fixed_discount,
				base_price, packs_total, electric_price, additionals_total, custom_items_total, optionals_total,
				gross_total, percentage_discount_amount, total_after_discounts,
				tax_rate, tax_label, tax_base, tax_amount, final_total,
				surcharge_rate, surcharge_amount, total_with_surcharge, legal_text)
			VALUES ($1, $2, TRUE, FALSE, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24)
			RETURNING `+budgetColumns,
			oppID, version, string(d.Region), selection,
			db.Numeric(d.Selection.PercentageDiscount), db.Numeric(b.FixedDiscount),
			db.Numeric(b.BasePrice), db.Numeric(b.PacksTotal), db.Numeric(b.ElectricPrice),
			db.Numeric(b.AdditionalsTotal), db.Numeric(b.CustomItemsTotal), db.Numeric(b.OptionalsTotal),
			db.Numeric(b.GrossTotal), db.Numeric(b.PercentageDiscountAmount), db.Numeric(b.TotalAfterDiscounts),
			db.Numeric(b.TaxRate), b.TaxLabel, db.Numeric(b.TaxBase), db.Numeric(b.TaxAmount), db.Numeric(b.FinalTotal),
			db.Numeric(b.SurchargeRate), db.Numeric(b.SurchargeAmount), db.Numeric(b.TotalWithSurcharge), d.LegalText,
		)
		created, err = scanBudget(row)
		if err != nil {
			return fmt.Errorf("insert budget: %w", err)
		}
		if err := insertLineItems(ctx, tx, created.ID, d.LineItems); err != nil {
			return err
		}
		created.LineItems = d.LineItems
		return nil
	})
	if err != nil {
		return Budget{}, nil, err
	}
	return created, demoted, nil
}

func (r PGRepository) UpdateVersion(ctx context.Context, id uuid.UUID, d Draft) (Budget, error) {
	var updated Budget
	err := db.WithTx(ctx, r.Pool, func(tx pgx.Tx) error {
		selection, err := json.Marshal(d.Selection)
		if err != nil {
			return fmt.Errorf("encode selection: %w", err)
		}
		b := d.Breakdown
		row := tx.QueryRow(ctx, `UPDATE budgets SET
				region = $2, selection = $3, percentage_discount = $4, fixed_discount = $5,
				base_price = $6, packs_total = $7, electric_price = $8, additionals_total = $9,
				custom_items_total = $10, optionals_total = $11, gross_total = $12,
				percentage_discount_amount = $13, total_after_discounts = $14,
				tax_rate = $15, tax_label = $16, tax_base = $17, tax_amount = $18, final_total = $19,
				surcharge_rate = $20, surcharge_amount = $21, total_with_surcharge = $22,
				legal_text = $23, updated_at = now()
			WHERE id = $1
			RETURNING `+budgetColumns,
			db.UUID(id), string(d.Region), selection,
			db.Numeric(d.Selection.PercentageDiscount), db.Numeric(b.FixedDiscount),
			db.Numeric(b.BasePrice), db.Numeric(b.PacksTotal), db.Numeric(b.ElectricPrice), db.Numeric(b.AdditionalsTotal),
			db.Numeric(b.CustomItemsTotal), db.Numeric(b.OptionalsTotal), db.Numeric(b.GrossTotal),
			db.Numeric(b.PercentageDiscountAmount), db.Numeric(b.TotalAfterDiscounts),
			db.Numeric(b.TaxRate), b.TaxLabel, db.Numeric(b.TaxBase), db.Numeric(b.TaxAmount), db.Numeric(b.FinalTotal),
			db.Numeric(b.SurchargeRate), db.Numeric(b.SurchargeAmount), db.Numeric(b.TotalWithSurcharge),
			d.LegalText,
		)
		updated, err = scanBudget(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update budget: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM budget_line_items WHERE budget_id = $1`, db.UUID(id)); err != nil {
			return fmt.Errorf("clear line items: %w", err)
		}
		if err := insertLineItems(ctx, tx, id, d.LineItems); err != nil {
			return err
		}
		updated.LineItems = d.LineItems
		return nil
	})
	if err != nil {
		return Budget{}, err
	}
	return updated, nil
}

func (r PGRepository) SetPrimary(ctx context.Context, id uuid.UUID) (Budget, []uuid.UUID, error) {
	var (
		primary Budget
		demoted []uuid.UUID
	)
	err := db.WithTx(ctx, r.Pool, func(tx pgx.Tx) error {
		var oppID pgtype.UUID
		err := tx.QueryRow(ctx, `SELECT o.id FROM budgets b
			JOIN opportunities o ON o.id = b.opportunity_id
			WHERE b.id = $1
			FOR UPDATE OF o`, db.UUID(id)).Scan(&oppID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock opportunity: %w", err)
		}

		rows, err := tx.Query(ctx, `WITH prev AS (
				SELECT id, is_primary FROM budgets WHERE opportunity_id = $1
			)
			UPDATE budgets b
			SET is_primary = (b.id = $2), is_historical = (b.id <> $2), updated_at = now()
			FROM prev
			WHERE b.id = prev.id
				AND (prev.is_primary OR b.id = $2 OR NOT b.is_historical)
			RETURNING b.id, prev.is_primary`, oppID, db.UUID(id))
		if err != nil {
			return fmt.Errorf("set primary budget: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				rowID      pgtype.UUID
				wasPrimary bool
			)
			if err := rows.Scan(&rowID, &wasPrimary); err != nil {
				return err
			}
			if changed := db.FromUUID(rowID); changed != id && wasPrimary {
				demoted = append(demoted, changed)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("set primary budget: %w", err)
		}

		primary, err = scanBudget(tx.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, db.UUID(id)))
		if err != nil {
			return fmt.Errorf("reload budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return Budget{}, nil, err
	}
	return primary, demoted, nil
}

func (r PGRepository) Get(ctx context.Context, id uuid.UUID) (Budget, error) {
	b, err := scanBudget(r.Pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, db.UUID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrNotFound
		}
		return Budget{}, fmt.Errorf("get budget: %w", err)
	}
	items, err := r.lineItems(ctx, id)
	if err != nil {
		return Budget{}, err
	}
	b.LineItems = items
	return b, nil
}

func (r PGRepository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]Budget, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+budgetColumns+`
		FROM budgets
		WHERE opportunity_id = $1
		ORDER BY version DESC`, db.UUID(opportunityID))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r PGRepository) Primary(ctx context.Context, opportunityID uuid.UUID) (Budget, error) {
	var id pgtype.UUID
	err := r.Pool.QueryRow(ctx, `SELECT id FROM budgets WHERE opportunity_id = $1 AND is_primary`, db.UUID(opportunityID)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrNotFound
		}
		return Budget{}, fmt.Errorf("get primary budget: %w", err)
	}
	return r.Get(ctx, db.FromUUID(id))
}

func (r PGRepository) lineItems(ctx context.Context, budgetID uuid.UUID) ([]LineItem, error) {
	rows, err := r.Pool.Query(ctx, `SELECT position, kind, option_id, name, unit_price, quantity, line_total, is_custom, is_discount
		FROM budget_line_items
		WHERE budget_id = $1
		ORDER BY position`, db.UUID(budgetID))
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()
	var out []LineItem
	for rows.Next() {
		var (
			item      LineItem
			position  int32
			quantity  int32
			optionID  pgtype.UUID
			unitPrice pgtype.Numeric
			lineTotal pgtype.Numeric
		)
		if err := rows.Scan(&position, &item.Kind, &optionID, &item.Name, &unitPrice, &quantity, &lineTotal, &item.IsCustom, &item.IsDiscount); err != nil {
			return nil, err
		}
		item.Position = int(position)
		item.Quantity = int(quantity)
		item.UnitPrice = db.Decimal(unitPrice)
		item.LineTotal = db.Decimal(lineTotal)
		if optionID.Valid {
			id := db.FromUUID(optionID)
			item.OptionID = &id
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func insertLineItems(ctx context.Context, tx pgx.Tx, budgetID uuid.UUID, items []LineItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		var optionID pgtype.UUID
		if item.OptionID != nil {
			optionID = db.UUID(*item.OptionID)
		}
		rows = append(rows, []any{
			db.UUID(budgetID), int32(item.Position), item.Kind, optionID, item.Name,
			db.Numeric(item.UnitPrice), int32(item.Quantity), db.Numeric(item.LineTotal),
			item.IsCustom, item.IsDiscount,
		})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"budget_line_items"}, lineItemColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("insert line items: %w", err)
	}
	return nil
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, db.FromUUID(id))
	}
	return ids, rows.Err()
}

func scanBudget(row pgx.Row) (Budget, error) {
	var (
		b         Budget
		id        pgtype.UUID
		oppID     pgtype.UUID
		version   int32
		region    string
		selection []byte
		amounts   [17]pgtype.Numeric
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&id, &oppID, &version, &b.IsPrimary, &b.IsHistorical, &region, &selection,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5],
		&amounts[6], &amounts[7], &amounts[8], &amounts[9],
		&amounts[10], &b.Breakdown.TaxLabel, &amounts[11], &amounts[12], &amounts[13],
		&amounts[14], &amounts[15], &amounts[16], &b.LegalText, &createdAt, &updatedAt,
	)
	if err != nil {
		return Budget{}, err
	}
	if len(selection) > 0 {
		if err := json.Unmarshal(selection, &b.Selection); err != nil {
			return Budget{}, fmt.Errorf("decode selection: %w", err)
		}
	}
	b.ID = db.FromUUID(id)
	b.OpportunityID = db.FromUUID(oppID)
	b.Version = int(version)
	b.Region = pricing.Region(region)
	b.CreatedAt = createdAt
	b.UpdatedAt = updatedAt

	br := &b.Breakdown
	for i, dst := range []*pricing.Money{
		&br.BasePrice, &br.PacksTotal, &br.ElectricPrice, &br.AdditionalsTotal, &br.CustomItemsTotal, &br.OptionalsTotal,
		&br.GrossTotal, &br.PercentageDiscountAmount, &br.FixedDiscount, &br.TotalAfterDiscounts,
		&br.TaxRate, &br.TaxBase, &br.TaxAmount, &br.FinalTotal,
		&br.SurchargeRate, &br.SurchargeAmount, &br.TotalWithSurcharge,
	} {
		*dst = db.Decimal(amounts[i])
	}
	return b, nil
}
