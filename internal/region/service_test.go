package region_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-budget/internal/cache"
	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/pricing"
	"github.com/noah-isme/camper-budget/internal/region"
)

type memoryRepo struct {
	rows     map[pricing.Region]region.Stored
	getCalls int
}

func (m *memoryRepo) List(context.Context) ([]region.Stored, error) {
	var out []region.Stored
	for _, r := range pricing.Regions() {
		if row, ok := m.rows[r]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, r pricing.Region) (*region.Stored, error) {
	m.getCalls++
	row, ok := m.rows[r]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memoryRepo) Upsert(_ context.Context, cfg pricing.TaxConfig) (region.Stored, error) {
	row := region.Stored{TaxConfig: cfg, UpdatedAt: time.Now().UTC()}
	m.rows[cfg.Region] = row
	return row, nil
}

func newService(t *testing.T) (*region.Service, *memoryRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &memoryRepo{rows: map[pricing.Region]region.Stored{}}
	return &region.Service{
		Repo:      repo,
		Cache:     cache.New(client, time.Minute),
		Validator: common.NewValidator(),
		Logger:    zerolog.Nop(),
	}, repo
}

func TestListFallsBackPerRegion(t *testing.T) {
	svc, repo := newService(t)
	repo.rows[pricing.Canarias] = region.Stored{TaxConfig: pricing.TaxConfig{
		Region: pricing.Canarias, TaxRate: decimal.NewFromInt(7), TaxLabel: "IGIC",
	}}

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, pricing.Peninsula, items[0].Region)
	require.True(t, items[0].Fallback)
	require.True(t, items[0].TaxRate.Equal(decimal.NewFromInt(21)))
	require.False(t, items[1].Fallback)
	require.NotNil(t, items[1].UpdatedAt)
	require.True(t, items[2].Fallback)
	require.True(t, items[2].TaxRate.IsZero())
}

func TestForCachesAndUpsertInvalidates(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	cfg, err := svc.For(ctx, pricing.Peninsula)
	require.NoError(t, err)
	require.True(t, cfg.Fallback)
	stored, err := svc.Stored(ctx, pricing.Peninsula)
	require.NoError(t, err)
	require.Nil(t, stored)
	require.Equal(t, 1, repo.getCalls)

	_, err = svc.Upsert(ctx, pricing.Peninsula, region.UpsertInput{
		TaxRate:          decimal.NewFromInt(21),
		TaxLabel:         " IVA ",
		SurchargeRate:    decimal.NewFromInt(12),
		SurchargeApplies: true,
	})
	require.NoError(t, err)

	stored, err = svc.Stored(ctx, pricing.Peninsula)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "IVA", stored.TaxLabel)
	require.True(t, stored.SurchargeRate.Equal(decimal.NewFromInt(12)))
	require.Equal(t, 2, repo.getCalls)
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Upsert(context.Background(), pricing.Canarias, region.UpsertInput{TaxRate: decimal.NewFromInt(-1)})
	require.True(t, common.HasCode(err, common.CodeValidation))

	_, err = svc.For(context.Background(), pricing.Region("andorra"))
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestHandlers(t *testing.T) {
	svc, _ := newService(t)
	h := &region.Handler{Service: svc}
	r := chi.NewRouter()
	r.Get("/api/v1/regions", h.List)
	r.Get("/api/v1/regions/{region}", h.Get)
	r.Put("/api/v1/regions/{region}", h.Put)

	body := `{"tax_rate":"7","tax_label":"IGIC","surcharge_rate":"0","surcharge_applies":false,"legal_text":"IGIC incluido"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/regions/canarias", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/regions/canarias", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data region.Config `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.Data.Fallback)
	require.Equal(t, "IGIC incluido", got.Data.LegalText)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/regions/marte", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/regions/canarias", strings.NewReader(`{"unknown":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
