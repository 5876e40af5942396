package mapper

import (
	"sort"
	"strings"
)

// mapping is one lookup row. Fallback matching scans rows in order, so
// earlier rows win when keys overlap.
type mapping struct {
	key   string
	value string
}

func defaultMarketStatus() []mapping {
	return []mapping{
		{"for_sale", "active"},
		{"for_rent", "active"},
		{"pending", "contingent"},
		{"contingent", "contingent"},
		{"sold", "off_market"},
	}
}

func defaultPropertyType() []mapping {
	return []mapping{
		{"single_family", "single_family"},
		{"single family", "single_family"},
		{"singlefamily", "single_family"},
		{"single-family", "single_family"},
		{"multi_family", "multi_family"},
		{"multi family", "multi_family"},
		{"multifamily", "multi_family"},
		{"multi-family", "multi_family"},
		{"condo", "condos"},
		{"condos", "condos"},
		{"condominium", "condos"},
		{"condo/townhome", "condo_townhome"},
		{"condo_townhome", "condo_townhome"},
		{"condo/townhouse", "condo_townhome"},
		{"townhome", "townhomes"},
		{"townhouse", "townhomes"},
		{"townhomes", "townhomes"},
		{"townhouses", "townhomes"},
		{"duplex", "duplex_triplex"},
		{"triplex", "duplex_triplex"},
		{"duplex/triplex", "duplex_triplex"},
		{"duplex_triplex", "duplex_triplex"},
		{"farm", "farm"},
		{"ranch", "farm"},
		{"land", "land"},
		{"lot", "land"},
		{"mobile", "mobile"},
		{"mobile home", "mobile"},
		{"manufactured", "mobile"},
	}
}

// applyOverrides replaces the values of matching rows and appends unknown
// keys at the end, sorted so fallback order stays stable across runs.
func applyOverrides(table []mapping, overrides map[string]string) []mapping {
	if len(overrides) == 0 {
		return table
	}

	rest := make(map[string]string, len(overrides))
	for k, v := range overrides {
		rest[strings.ToLower(k)] = v
	}

	out := make([]mapping, len(table))
	copy(out, table)
	for i := range out {
		if v, ok := rest[out[i].key]; ok {
			out[i].value = v
			delete(rest, out[i].key)
		}
	}

	added := make([]string, 0, len(rest))
	for k := range rest {
		added = append(added, k)
	}
	sort.Strings(added)
	for _, k := range added {
		out = append(out, mapping{key: k, value: rest[k]})
	}
	return out
}

func matchExact(table []mapping, key string) (string, bool) {
	for _, row := range table {
		if row.key == key {
			return row.value, true
		}
	}
	return "", false
}

func matchSubstring(table []mapping, text string) (string, bool) {
	for _, row := range table {
		if strings.Contains(text, row.key) {
			return row.value, true
		}
	}
	return "", false
}
