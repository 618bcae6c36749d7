package cache

import (
	"strings"

	"github.com/google/uuid"
)

const keyPrefix = "camper:"

// CatalogPrefix prefixes every catalog listing key.
const CatalogPrefix = keyPrefix + "catalog:"

// KeyCatalogList returns the cache key for an active catalog listing in a region.
func KeyCatalogList(category, region string) string {
	return CatalogPrefix + strings.ToLower(category) + ":" + strings.ToLower(region)
}

// KeyRegion returns the cache key for a regional tax configuration.
func KeyRegion(region string) string {
	return keyPrefix + "region:" + strings.ToLower(region)
}

// KeyBudgetSummary returns the cache key for a budget's printable summary.
func KeyBudgetSummary(id uuid.UUID) string {
	return keyPrefix + "budget:summary:" + id.String()
}
