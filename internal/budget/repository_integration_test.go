//go:build integration

package budget

// Runs PGRepository against a real Postgres started through testcontainers.
// Run with: go test -tags integration ./internal/budget/... -run PG -v

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/camper-budget/internal/db"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

type pgEnv struct {
	pool  *pgxpool.Pool
	repo  PGRepository
	model pricing.Option
}

func setupPG(t *testing.T) *pgEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("camper_test"),
		tcpostgres.WithUsername("camper"),
		tcpostgres.WithPassword("camper"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	url, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(url))

	pool, err := db.NewPool(ctx, url, "camper-budget-test", nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	model := pricing.Option{Name: "Camper 600", StandardPrice: money("45000")}
	var id pgtype.UUID
	err = pool.QueryRow(ctx, `INSERT INTO catalog_options (category, name, standard_price)
		VALUES ('model', $1, $2) RETURNING id`, model.Name, db.Numeric(model.StandardPrice)).Scan(&id)
	require.NoError(t, err)
	model.ID = db.FromUUID(id)

	return &pgEnv{pool: pool, repo: PGRepository{Pool: pool}, model: model}
}

func (e *pgEnv) opportunity(t *testing.T, client string) uuid.UUID {
	t.Helper()
	var id pgtype.UUID
	err := e.pool.QueryRow(context.Background(),
		`INSERT INTO opportunities (client_name, region) VALUES ($1, 'peninsula') RETURNING id`, client).Scan(&id)
	require.NoError(t, err)
	return db.FromUUID(id)
}

func (e *pgEnv) draft(opportunityID uuid.UUID, pct string) Draft {
	model := e.model
	sel := pricing.Selection{
		Model:    &model,
		Region:   pricing.Peninsula,
		Discount: pricing.Discount{Percentage: money(pct)},
	}
	return Draft{
		OpportunityID: opportunityID,
		Region:        pricing.Peninsula,
		Selection: Record{
			SelectionInput:     SelectionInput{Region: string(pricing.Peninsula), ModelID: idPtr(model.ID)},
			PercentageDiscount: money(pct),
		},
		Breakdown: pricing.Compute(sel, nil).Rounded(),
		LegalText: pricing.DefaultTaxConfig(pricing.Peninsula).LegalText,
		LineItems: buildLines(sel, nil),
	}
}

func (e *pgEnv) primaryCount(t *testing.T, opportunityID uuid.UUID) int {
	t.Helper()
	var n int
	err := e.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM budgets WHERE opportunity_id = $1 AND is_primary`, db.UUID(opportunityID)).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestPGRepositoryVersionsAndPrimary(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	env := setupPG(t)
	ctx := context.Background()
	opp := env.opportunity(t, "Marta Ruiz")

	v1, demoted, err := env.repo.CreateVersion(ctx, env.draft(opp, "0"))
	require.NoError(t, err)
	require.Equal(t, 1, v1.Version)
	require.True(t, v1.IsPrimary)
	require.Empty(t, demoted)
	require.True(t, v1.Breakdown.TotalWithSurcharge.Equal(money("47138")))
	require.True(t, v1.Breakdown.TaxBase.Equal(money("37190.08")))

	v2, demoted, err := env.repo.CreateVersion(ctx, env.draft(opp, "5"))
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)
	require.Equal(t, []uuid.UUID{v1.ID}, demoted)

	v3, demoted, err := env.repo.CreateVersion(ctx, env.draft(opp, "10"))
	require.NoError(t, err)
	require.Equal(t, 3, v3.Version)
	require.Equal(t, []uuid.UUID{v2.ID}, demoted)
	require.Equal(t, 1, env.primaryCount(t, opp))

	old, err := env.repo.Get(ctx, v1.ID)
	require.NoError(t, err)
	require.False(t, old.IsPrimary)
	require.True(t, old.IsHistorical)
	require.Len(t, old.LineItems, 1)
	require.Equal(t, env.model.ID, *old.LineItems[0].OptionID)
	require.True(t, old.LineItems[0].LineTotal.Equal(money("45000")))
	require.Equal(t, string(pricing.Peninsula), old.Selection.Region)

	promoted, demoted, err := env.repo.SetPrimary(ctx, v1.ID)
	require.NoError(t, err)
	require.True(t, promoted.IsPrimary)
	require.False(t, promoted.IsHistorical)
	require.Equal(t, []uuid.UUID{v3.ID}, demoted)
	require.Equal(t, 1, env.primaryCount(t, opp))

	latest, err := env.repo.Get(ctx, v3.ID)
	require.NoError(t, err)
	require.False(t, latest.IsPrimary)
	require.True(t, latest.IsHistorical)

	primary, err := env.repo.Primary(ctx, opp)
	require.NoError(t, err)
	require.Equal(t, v1.ID, primary.ID)

	list, err := env.repo.ListByOpportunity(ctx, opp)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []int{3, 2, 1}, []int{list[0].Version, list[1].Version, list[2].Version})

	_, _, err = env.repo.SetPrimary(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = env.repo.CreateVersion(ctx, env.draft(uuid.New(), "0"))
	require.ErrorIs(t, err, ErrOpportunityNotFound)
}

func TestPGRepositoryUpdateRewritesLineItems(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	env := setupPG(t)
	ctx := context.Background()
	opp := env.opportunity(t, "Jordi Puig")

	b, _, err := env.repo.CreateVersion(ctx, env.draft(opp, "0"))
	require.NoError(t, err)

	d := env.draft(opp, "10")
	d.LineItems = append(d.LineItems, LineItem{
		Position:  2,
		Kind:      KindCustom,
		Name:      "Cojines",
		UnitPrice: money("40"),
		Quantity:  3,
		LineTotal: money("120"),
		IsCustom:  true,
	})
	updated, err := env.repo.UpdateVersion(ctx, b.ID, d)
	require.NoError(t, err)
	require.Equal(t, b.Version, updated.Version)
	require.True(t, updated.Breakdown.PercentageDiscountAmount.Equal(money("4500")))

	got, err := env.repo.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got.LineItems, 2)
	require.Nil(t, got.LineItems[1].OptionID)
	require.Equal(t, 3, got.LineItems[1].Quantity)
	require.True(t, got.Selection.PercentageDiscount.Equal(money("10")))

	_, err = env.repo.UpdateVersion(ctx, uuid.New(), d)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepositoryRejectsSecondPrimary(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	env := setupPG(t)
	ctx := context.Background()
	opp := env.opportunity(t, "Ana Vidal")

	first, _, err := env.repo.CreateVersion(ctx, env.draft(opp, "0"))
	require.NoError(t, err)
	_, _, err = env.repo.CreateVersion(ctx, env.draft(opp, "0"))
	require.NoError(t, err)

	err = db.WithTx(ctx, env.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE budgets SET is_primary = TRUE WHERE id = $1`, db.UUID(first.ID))
		return err
	})
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err), "unexpected error: %v", err)
	require.Equal(t, 1, env.primaryCount(t, opp))
}

func TestPGRepositoryConcurrentCreatesKeepOnePrimary(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	env := setupPG(t)
	ctx := context.Background()
	opp := env.opportunity(t, "Lucía Ferrer")

	const writers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions = map[int]bool{}
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _, err := env.repo.CreateVersion(ctx, env.draft(opp, "0"))
			if err != nil {
				t.Errorf("create version: %v", err)
				return
			}
			mu.Lock()
			versions[b.Version] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, versions, writers)
	for v := 1; v <= writers; v++ {
		require.True(t, versions[v], "missing version %d", v)
	}
	require.Equal(t, 1, env.primaryCount(t, opp))

	primary, err := env.repo.Primary(ctx, opp)
	require.NoError(t, err)
	require.Equal(t, writers, primary.Version)
}
