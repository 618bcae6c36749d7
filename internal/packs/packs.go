package packs

import (
	"strings"

	"github.com/google/uuid"
)

const packPrefix = "pack "

// included lists the human readable contents of each named pack. Entries that
// start with "Pack " refer to another pack and are expanded recursively.
var included = map[string][]string{
	"essentials": {
		"Toldo lateral",
		"Mosquiteras en puertas",
		"Cortinas oscurecedoras",
		"Ducha exterior",
		"Escalón eléctrico",
	},
	"adventure": {
		"Pack Essentials",
		"Placa solar 200W",
		"Baca con escalera",
		"Portabicis trasero",
		"Calefacción estacionaria",
	},
	"ultimate": {
		"Pack Essentials",
		"Pack Adventure",
		"Batería de litio 200Ah",
		"Inversor 2000W",
		"Climatizador de techo",
		"Pantalla multimedia con cámara trasera",
	},
}

// Known reports whether packName has a component table.
func Known(packName string) bool {
	_, ok := included[normalise(packName)]
	return ok
}

// Components returns the flattened list of real components included in the
// pack, resolving nested pack references. Unknown packs yield nil.
func Components(packName string) []string {
	key := normalise(packName)
	if _, ok := included[key]; !ok {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	expand(key, map[string]bool{}, seen, &out)
	return out
}

func expand(key string, visiting map[string]bool, seen map[string]struct{}, out *[]string) {
	if visiting[key] {
		return
	}
	visiting[key] = true
	defer delete(visiting, key)

	for _, entry := range included[key] {
		if isPackRef(entry) {
			expand(normalise(entry), visiting, seen, out)
			continue
		}
		dedup := strings.ToLower(entry)
		if _, dup := seen[dedup]; dup {
			continue
		}
		seen[dedup] = struct{}{}
		*out = append(*out, entry)
	}
}

func isPackRef(entry string) bool {
	lower := strings.ToLower(strings.TrimSpace(entry))
	if !strings.HasPrefix(lower, packPrefix) {
		return false
	}
	_, ok := included[strings.TrimSpace(strings.TrimPrefix(lower, packPrefix))]
	return ok
}

func normalise(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSpace(strings.TrimPrefix(lower, packPrefix))
}

// Membership maps a pack option to the option IDs it bundles.
type Membership map[uuid.UUID][]uuid.UUID

// Bundled reports whether optionID is included in any of the selected packs.
func (m Membership) Bundled(optionID uuid.UUID, selectedPacks []uuid.UUID) (uuid.UUID, bool) {
	for _, packID := range selectedPacks {
		for _, member := range m[packID] {
			if member == optionID {
				return packID, true
			}
		}
	}
	return uuid.Nil, false
}
