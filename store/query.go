package store

import (
	"sort"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
)

// Sort fields accepted by List.
const (
	SortFullName    = "full_name"
	SortCode        = "code"
	SortVisitedDate = "visited_date"
	SortCreatedAt   = "created_at"
)

// groupByDateSince returns the created-at lower bound for a named range.
// Supported ranges: last_2_days, last_3_months, last_6_months.
func groupByDateSince(groupByDate string, now time.Time) (time.Time, bool) {
	switch groupByDate {
	case "last_2_days":
		return now.AddDate(0, 0, -2), true
	case "last_3_months":
		return now.AddDate(0, -3, 0), true
	case "last_6_months":
		return now.AddDate(0, -6, 0), true
	}
	return time.Time{}, false
}

// applyQuery is the in-memory equivalent of SQLStore.List for backends
// without a query engine.
func applyQuery(all []model.Patient, q reconcile.ListQuery, now time.Time) ([]model.Patient, int64) {
	since, hasSince := groupByDateSince(q.GroupByDate, now)
	kw := strings.ToLower(strings.TrimSpace(q.Keyword))

	matched := make([]model.Patient, 0, len(all))
	for _, p := range all {
		if kw != "" && !matchesKeyword(p, kw) {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if q.Gender != "" && p.Gender != q.Gender {
			continue
		}
		if q.Month != "" && !strings.HasPrefix(p.VisitedDate, q.Month) {
			continue
		}
		if hasSince && p.CreatedAt.Before(since) {
			continue
		}
		matched = append(matched, p)
	}

	sort.SliceStable(matched, lessFunc(matched, q.SortBy, q.SortDir))

	total := int64(len(matched))
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []model.Patient{}, total
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total
}

func matchesKeyword(p model.Patient, kw string) bool {
	for _, field := range []string{p.FullNameArabic, p.FullName, p.Code, p.Diagnosis} {
		if strings.Contains(strings.ToLower(field), kw) {
			return true
		}
	}
	return false
}

func lessFunc(ps []model.Patient, sortBy, sortDir string) func(i, j int) bool {
	desc := strings.ToLower(sortDir) == "desc"
	cmp := func(a, b string) bool {
		if desc {
			return a > b
		}
		return a < b
	}
	switch sortBy {
	case SortFullName:
		return func(i, j int) bool { return cmp(ps[i].FullNameArabic, ps[j].FullNameArabic) }
	case SortCode:
		return func(i, j int) bool { return cmp(ps[i].Code, ps[j].Code) }
	case SortVisitedDate:
		return func(i, j int) bool { return cmp(ps[i].VisitedDate, ps[j].VisitedDate) }
	case SortCreatedAt:
		return func(i, j int) bool {
			if desc {
				return ps[i].CreatedAt.After(ps[j].CreatedAt)
			}
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
	default:
		return func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) }
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
