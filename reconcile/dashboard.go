package reconcile

import (
	"time"

	"github.com/A-tamer/hospital-management-system/model"
)

// Dashboard aggregates patient counts for the clinic overview.
type Dashboard struct {
	TotalPatients  int                `json:"totalPatients"`
	NewThisMonth   int                `json:"newThisMonth"`
	Undiagnosed    int                `json:"undiagnosed"`
	ByStatus       map[string]int     `json:"byStatus"`
	ByGender       map[string]int     `json:"byGender"`
	VisitsByMonth  map[string]int     `json:"visitsByMonth"`
	TotalSurgeries int                `json:"totalSurgeries"`
	TotalFollowUps int                `json:"totalFollowUps"`
	SurgeryCost    map[string]float64 `json:"surgeryCost,omitempty"`
}

// BuildDashboard computes the overview. Visits are bucketed by the month of
// the visited date over the last twelve months; costs are summed per
// currency only when financial is true.
func BuildDashboard(records []model.Patient, now time.Time, financial bool) Dashboard {
	d := Dashboard{
		ByStatus:      map[string]int{},
		ByGender:      map[string]int{},
		VisitsByMonth: map[string]int{},
	}
	for _, s := range model.Statuses {
		d.ByStatus[s] = 0
	}
	months := make(map[string]bool, 12)
	for i := 0; i < 12; i++ {
		m := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location()).Format("2006-01")
		months[m] = true
		d.VisitsByMonth[m] = 0
	}
	if financial {
		d.SurgeryCost = map[string]float64{}
	}

	thisMonth := now.Format("2006-01")
	for _, p := range records {
		d.TotalPatients++
		d.ByStatus[p.Status]++
		d.ByGender[p.Gender]++
		if len(p.Diagnoses) == 0 {
			d.Undiagnosed++
		}
		if p.CreatedAt.Format("2006-01") == thisMonth {
			d.NewThisMonth++
		}
		if len(p.VisitedDate) >= 7 && months[p.VisitedDate[:7]] {
			d.VisitsByMonth[p.VisitedDate[:7]]++
		}
		d.TotalSurgeries += len(p.Surgeries)
		d.TotalFollowUps += len(p.FollowUps)
		if financial {
			for _, s := range p.Surgeries {
				if s.Cost == 0 {
					continue
				}
				currency := s.Currency
				if currency == "" {
					currency = "unspecified"
				}
				d.SurgeryCost[currency] += s.Cost
			}
		}
	}
	return d
}
