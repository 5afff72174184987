package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ze-codes/tee-time-scraper/config"
	"github.com/ze-codes/tee-time-scraper/models"
	"github.com/ze-codes/tee-time-scraper/reconcile"
)

// ErrCourseNotFound is returned when a course name is unknown.
var ErrCourseNotFound = errors.New("course not found")

// SlotStore persists courses and tee slots in PostgreSQL. It implements
// reconcile.Store and serves the search API.
type SlotStore struct {
	db   *bun.DB
	zone string
}

// NewSlotStore wraps db. New courses get zone as their timezone.
func NewSlotStore(db *bun.DB, zone string) *SlotStore {
	if zone == "" {
		zone = models.DefaultTimezone
	}
	return &SlotStore{db: db, zone: zone}
}

var _ reconcile.Store = (*SlotStore)(nil)

// EnsureCourse returns the course named name, creating it if needed.
func (s *SlotStore) EnsureCourse(ctx context.Context, name string) (*models.Course, error) {
	c := &models.Course{
		Name:           name,
		Timezone:       s.zone,
		MinBookingSize: models.DefaultMinBookingSize,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(c).On("CONFLICT (name) DO NOTHING").Returning("NULL").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	return s.Course(ctx, name)
}

// Course loads one course by exact name.
func (s *SlotStore) Course(ctx context.Context, name string) (*models.Course, error) {
	c := new(models.Course)
	if err := s.db.NewSelect().Model(c).Where("c.name = ?", name).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, name)
		}
		return nil, fmt.Errorf("select course: %w", err)
	}
	return c, nil
}

// Courses lists every course ordered by name.
func (s *SlotStore) Courses(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	if err := s.db.NewSelect().Model(&out).Order("c.name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select courses: %w", err)
	}
	return out, nil
}

// CourseNames returns the sorted course names.
func (s *SlotStore) CourseNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.NewSelect().
		Model((*models.Course)(nil)).
		Column("name").
		Order("name ASC").
		Scan(ctx, &names); err != nil {
		return nil, fmt.Errorf("select course names: %w", err)
	}
	return names, nil
}

// ApplyCourse locks the course row, loads the slots scope selects, runs plan
// and writes its inserts and updates in the same transaction.
func (s *SlotStore) ApplyCourse(ctx context.Context, course *models.Course, scope reconcile.Scope, plan reconcile.PlanFunc) (*reconcile.Plan, error) {
	var out *reconcile.Plan

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var id int64
		if err := tx.NewSelect().
			Model((*models.Course)(nil)).
			Column("id").
			Where("id = ?", course.ID).
			For("UPDATE").
			Scan(ctx, &id); err != nil {
			return fmt.Errorf("lock course %d: %w", course.ID, err)
		}

		var existing []models.TeeSlot
		q := tx.NewSelect().
			Model(&existing).
			Where("ts.course_id = ?", course.ID).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				q = q.Where("ts.start_time < ? AND cardinality(ts.available_booking_sizes) > 0", scope.Now)
				if !scope.To.IsZero() {
					q = q.WhereOr("ts.start_time >= ? AND ts.start_time < ?", scope.From, scope.To)
				}
				return q
			}).
			Order("ts.start_time ASC")
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("load slots: %w", err)
		}

		p, err := plan(existing)
		if err != nil {
			return err
		}

		if len(p.Inserts) > 0 {
			if _, err := tx.NewInsert().Model(&p.Inserts).Exec(ctx); err != nil {
				return fmt.Errorf("insert slots: %w", err)
			}
		}
		for i := range p.Updates {
			if _, err := tx.NewUpdate().
				Model(&p.Updates[i]).
				Column("price", "currency", "available_booking_sizes", "starting_hole", "updated_at").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("update slot %d: %w", p.Updates[i].ID, err)
			}
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SeedCourses inserts courses from the source registry that do not exist
// yet. Existing rows are left untouched. It returns how many were created.
func (s *SlotStore) SeedCourses(ctx context.Context, courses []config.CourseConfig) (int, error) {
	if len(courses) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, models.Course{
			Name:           c.Name,
			Latitude:       c.Latitude,
			Longitude:      c.Longitude,
			Timezone:       c.Timezone,
			MinBookingSize: c.MinBookingSize,
			CreatedAt:      now,
		})
	}
	res, err := s.db.NewInsert().Model(&rows).On("CONFLICT (name) DO NOTHING").Returning("NULL").Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed courses: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CourseUpdate holds the course attributes an administrator may change.
// Nil fields are left as they are.
type CourseUpdate struct {
	Latitude       *float64
	Longitude      *float64
	Timezone       *string
	MinBookingSize *int
}

// UpdateCourse creates the course if needed and applies u to it.
func (s *SlotStore) UpdateCourse(ctx context.Context, name string, u CourseUpdate) (*models.Course, error) {
	c, err := s.EnsureCourse(ctx, name)
	if err != nil {
		return nil, err
	}

	var cols []string
	if u.Latitude != nil {
		c.Latitude = u.Latitude
		cols = append(cols, "latitude")
	}
	if u.Longitude != nil {
		c.Longitude = u.Longitude
		cols = append(cols, "longitude")
	}
	if u.Timezone != nil {
		c.Timezone = *u.Timezone
		cols = append(cols, "timezone")
	}
	if u.MinBookingSize != nil {
		c.MinBookingSize = *u.MinBookingSize
		cols = append(cols, "min_booking_size")
	}
	if len(cols) == 0 {
		return c, nil
	}

	if _, err := s.db.NewUpdate().Model(c).Column(cols...).WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("update course %q: %w", name, err)
	}
	return c, nil
}
