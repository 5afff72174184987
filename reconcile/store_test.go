package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ze-codes/tee-time-scraper/models"
	"github.com/ze-codes/tee-time-scraper/tz"
)

// memStore is an in-memory Store. It records overlapping ApplyCourse calls
// for the same course so tests can prove the engine serialises them.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	courses  map[string]*models.Course
	slots    map[int64]map[int64]models.TeeSlot
	writes   map[int64]int
	active   map[int64]int
	overlaps int
	failures map[string]int
	delay    time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		courses:  map[string]*models.Course{},
		slots:    map[int64]map[int64]models.TeeSlot{},
		writes:   map[int64]int{},
		active:   map[int64]int{},
		failures: map[string]int{},
	}
}

func (m *memStore) EnsureCourse(_ context.Context, name string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.courses[name]; ok {
		cp := *c
		return &cp, nil
	}
	m.nextID++
	c := &models.Course{
		ID:             m.nextID,
		Name:           name,
		Timezone:       models.DefaultTimezone,
		MinBookingSize: models.DefaultMinBookingSize,
	}
	m.courses[name] = c
	m.slots[c.ID] = map[int64]models.TeeSlot{}
	cp := *c
	return &cp, nil
}

func (m *memStore) Courses(_ context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b models.Course) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) ApplyCourse(_ context.Context, course *models.Course, scope Scope, fn PlanFunc) (*Plan, error) {
	m.mu.Lock()
	m.active[course.ID]++
	if m.active[course.ID] > 1 {
		m.overlaps++
	}
	if m.failures[course.Name] > 0 {
		m.failures[course.Name]--
		m.active[course.ID]--
		m.mu.Unlock()
		return nil, errors.New("could not serialize access due to concurrent update")
	}
	var existing []models.TeeSlot
	for _, s := range m.slots[course.ID] {
		if scope.Includes(&s) {
			s.AvailableBookingSizes = slices.Clone(s.AvailableBookingSizes)
			existing = append(existing, s)
		}
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active[course.ID]--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	plan, err := fn(existing)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.slots[course.ID]
	for _, s := range plan.Inserts {
		for _, cur := range rows {
			if cur.StartTime.Equal(s.StartTime) {
				return nil, fmt.Errorf("duplicate slot %s", s.StartTime)
			}
		}
	}
	for i := range plan.Inserts {
		m.nextID++
		plan.Inserts[i].ID = m.nextID
		rows[m.nextID] = plan.Inserts[i]
		m.writes[m.nextID]++
	}
	for _, s := range plan.Updates {
		cur, ok := rows[s.ID]
		if !ok || cur.CourseID != s.CourseID {
			return nil, fmt.Errorf("update of unknown slot %d", s.ID)
		}
		rows[s.ID] = s
		m.writes[s.ID]++
	}
	return plan, nil
}

// seed stores a slot at a Vancouver wall-clock time and returns its ID.
func (m *memStore) seed(t *testing.T, course, date, clock string, sizes ...int) int64 {
	t.Helper()
	c, _ := m.EnsureCourse(context.Background(), course)
	loc, _ := tz.Load(c.Timezone)
	start, err := tz.ToUTC(date, clock, loc)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if sizes == nil {
		sizes = []int{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.slots[c.ID][m.nextID] = models.TeeSlot{
		ID:                    m.nextID,
		CourseID:              c.ID,
		StartTime:             start,
		Price:                 40,
		Currency:              "CAD",
		AvailableBookingSizes: sizes,
		StartingHole:          1,
	}
	return m.nextID
}

// snapshot returns a course's slots ordered by start time.
func (m *memStore) snapshot(course string) []models.TeeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[course]
	if !ok {
		return nil
	}
	out := make([]models.TeeSlot, 0, len(m.slots[c.ID]))
	for _, s := range m.slots[c.ID] {
		s.AvailableBookingSizes = slices.Clone(s.AvailableBookingSizes)
		out = append(out, s)
	}
	sortSlots(out)
	return out
}

func (m *memStore) slot(course string, id int64) models.TeeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[m.courses[course].ID][id]
}
