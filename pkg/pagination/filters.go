package pagination

import (
	"fmt"
	"sort"
	"strings"
)

// Filter keys with dedicated fields and summary labels.
const (
	FilterStatus    = "status"
	FilterStartDate = "startDate"
	FilterEndDate   = "endDate"
	FilterSatellite = "satellite"
)

// navigationKeys are owned by the manager and never stored as filters.
var navigationKeys = map[string]bool{
	"limit":  true,
	"offset": true,
}

// isEmptyValue reports whether v counts as "no filter".
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

func cloneFilters(filters map[string]any) map[string]any {
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		out[k] = v
	}
	return out
}

// mergeFilters applies updates onto base in place. An empty value removes the key.
func mergeFilters(base, updates map[string]any) {
	for k, v := range updates {
		if navigationKeys[k] {
			continue
		}
		if isEmptyValue(v) {
			delete(base, k)
			continue
		}
		base[k] = v
	}
}

// filtersEqual compares filter sets by their textual values, so values that
// went through a JSON round trip still compare equal.
func filtersEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || fmt.Sprint(va) != fmt.Sprint(vb) {
			return false
		}
	}
	return true
}

// queryParams returns the filters with empty values stripped plus limit and offset.
func queryParams(filters map[string]any, limit, offset int) map[string]any {
	params := make(map[string]any, len(filters)+2)
	for k, v := range filters {
		if !isEmptyValue(v) && !navigationKeys[k] {
			params[k] = v
		}
	}
	params["limit"] = limit
	params["offset"] = offset
	return params
}

// SummarizeFilters renders the active filters for history entries, e.g.
// "Status: completed; Date range: 2024-01-01 to 2024-01-31; Satellite: WorldView-3".
func SummarizeFilters(filters map[string]any) string {
	var parts []string

	if v, ok := filters[FilterStatus]; ok && !isEmptyValue(v) {
		parts = append(parts, fmt.Sprintf("Status: %v", v))
	}

	start, hasStart := filters[FilterStartDate]
	end, hasEnd := filters[FilterEndDate]
	hasStart = hasStart && !isEmptyValue(start)
	hasEnd = hasEnd && !isEmptyValue(end)
	switch {
	case hasStart && hasEnd:
		parts = append(parts, fmt.Sprintf("Date range: %v to %v", start, end))
	case hasStart:
		parts = append(parts, fmt.Sprintf("Date range: From %v", start))
	case hasEnd:
		parts = append(parts, fmt.Sprintf("Date range: Until %v", end))
	}

	if v, ok := filters[FilterSatellite]; ok && !isEmptyValue(v) {
		parts = append(parts, fmt.Sprintf("Satellite: %v", v))
	}

	var rest []string
	for k, v := range filters {
		switch k {
		case FilterStatus, FilterStartDate, FilterEndDate, FilterSatellite:
			continue
		}
		if isEmptyValue(v) {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		parts = append(parts, fmt.Sprintf("%s: %v", k, filters[k]))
	}

	if len(parts) == 0 {
		return "No filters"
	}
	return strings.Join(parts, "; ")
}

// resultSummary is the human-readable line returned with every page.
func resultSummary(count, pageIndex, uniqueOrders int) string {
	return fmt.Sprintf("Found %d order(s) on page %d (%d unique order(s) seen this session)", count, pageIndex, uniqueOrders)
}
