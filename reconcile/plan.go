package reconcile

import (
	"slices"
	"time"

	"github.com/ze-codes/tee-time-scraper/models"
	"github.com/ze-codes/tee-time-scraper/tz"
)

// Scope tells a Store which persisted slots of a course a plan needs to see.
// Stores may return more; plans only act on what the passes select.
type Scope struct {
	// Now selects slots starting before it that are still open.
	Now time.Time
	// From and To select slots in [From, To). A zero To selects nothing.
	From, To time.Time
}

// Includes reports whether slot falls inside the scope.
func (s Scope) Includes(slot *models.TeeSlot) bool {
	if slot.StartTime.Before(s.Now) && slot.Open() {
		return true
	}
	if s.To.IsZero() {
		return false
	}
	return !slot.StartTime.Before(s.From) && slot.StartTime.Before(s.To)
}

// Plan is the set of writes one course needs. Updates hold complete rows
// keyed by ID; Inserts have no ID yet.
type Plan struct {
	Inserts []models.TeeSlot
	Updates []models.TeeSlot

	Expired    int
	Tombstoned int
	Refreshed  int
	Unchanged  int
}

// Empty reports whether the plan writes nothing.
func (p *Plan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0
}

// PlanFunc computes a plan from the persisted slots a Store loaded.
type PlanFunc func(existing []models.TeeSlot) (*Plan, error)

// planCourse runs the expiration, missing-slot and upsert passes over the
// persisted slots of one course. All three are folded into a single decision
// per slot so the outcome does not depend on slice order.
func planCourse(courseID int64, existing []models.TeeSlot, batch *courseBatch, loc *time.Location, now time.Time) *Plan {
	plan := &Plan{}
	matched := make(map[int64]struct{}, len(batch.byInstant))

	for i := range existing {
		cur := &existing[i]
		key := cur.StartTime.UTC().UnixNano()
		past := cur.StartTime.Before(now)

		next := *cur
		next.StartTime = cur.StartTime.UTC()

		rec, inBatch := batch.byInstant[key]
		switch {
		case inBatch:
			matched[key] = struct{}{}
			next.Price = rec.price
			next.Currency = rec.currency
			next.StartingHole = rec.hole
			next.AvailableBookingSizes = slices.Clone(rec.sizes)
			if past {
				next.AvailableBookingSizes = []int{}
			}
		case past:
			next.AvailableBookingSizes = []int{}
		default:
			if _, ok := batch.covered[tz.LocalDate(cur.StartTime, loc)]; ok {
				next.AvailableBookingSizes = []int{}
			}
		}

		if next.SameOffer(cur) {
			plan.Unchanged++
			continue
		}

		switch {
		case inBatch:
			plan.Refreshed++
		case past:
			plan.Expired++
		default:
			plan.Tombstoned++
		}
		next.UpdatedAt = now
		plan.Updates = append(plan.Updates, next)
	}

	for key, rec := range batch.byInstant {
		if _, ok := matched[key]; ok {
			continue
		}
		sizes := slices.Clone(rec.sizes)
		if rec.start.Before(now) {
			sizes = []int{}
		}
		plan.Inserts = append(plan.Inserts, models.TeeSlot{
			CourseID:              courseID,
			StartTime:             rec.start,
			Price:                 rec.price,
			Currency:              rec.currency,
			AvailableBookingSizes: sizes,
			StartingHole:          rec.hole,
			CreatedAt:             now,
			UpdatedAt:             now,
		})
	}

	sortSlots(plan.Inserts)
	sortSlots(plan.Updates)
	return plan
}

// planExpire runs only the expiration pass.
func planExpire(existing []models.TeeSlot, now time.Time) *Plan {
	plan := &Plan{}
	for i := range existing {
		cur := existing[i]
		if !cur.StartTime.Before(now) || !cur.Open() {
			plan.Unchanged++
			continue
		}
		cur.AvailableBookingSizes = []int{}
		cur.UpdatedAt = now
		plan.Updates = append(plan.Updates, cur)
		plan.Expired++
	}
	sortSlots(plan.Updates)
	return plan
}

func sortSlots(s []models.TeeSlot) {
	slices.SortFunc(s, func(a, b models.TeeSlot) int {
		return a.StartTime.Compare(b.StartTime)
	})
}
