package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/ze-codes/tee-time-scraper/pipeline"
	"github.com/ze-codes/tee-time-scraper/query"
	"github.com/ze-codes/tee-time-scraper/reconcile"
)

type fakeStore struct {
	searched *query.Filter
	page     *query.Page
	names    []string
	err      error
}

func (s *fakeStore) Search(_ context.Context, f *query.Filter) (*query.Page, error) {
	s.searched = f
	return s.page, s.err
}

func (s *fakeStore) CourseNames(context.Context) ([]string, error) {
	return s.names, s.err
}

type fakeRunner struct {
	id        uuid.UUID
	triggered string
	expire    *reconcile.Result
	closed    bool
}

func (r *fakeRunner) Trigger(name string) (uuid.UUID, error) {
	if r.closed {
		return uuid.Nil, pipeline.ErrShuttingDown
	}
	if name != pipeline.AllSources && name != "city" {
		return uuid.Nil, fmt.Errorf("%w %q, valid sources: all, city", pipeline.ErrUnknownSource, name)
	}
	r.triggered = name
	return r.id, nil
}

func (r *fakeRunner) Expire(context.Context) (*reconcile.Result, error) {
	return r.expire, nil
}

// serve runs fn against a request and converts a returned HTTPError the way
// echo's default error handler would.
func serve(t *testing.T, method, target string, fn echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	if err := fn(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestTeeTimes(t *testing.T) {
	store := &fakeStore{page: &query.Page{
		TeeTimes: []query.Slot{query.FormatSlot(1, "Langara", "America/Vancouver",
			mustUTC(t, "2024-07-16T06:30:00Z"), []int{2, 3, 4}, 55, "CAD", 1)},
		Pagination: query.Paginate(41, 3, 20),
	}}
	h := New(store, &fakeRunner{}, zaptest.NewLogger(t))

	rec := serve(t, http.MethodGet, "/api/tee-times?date=2024-07-15&course=Langara&page=3&sort=price&order=desc", h.TeeTimes)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if store.searched.Sort != query.SortPrice || store.searched.Page != 3 || store.searched.Courses[0] != "Langara" {
		t.Errorf("filter = %+v", store.searched)
	}

	var body struct {
		TeeTimes   []map[string]any `json:"tee_times"`
		Pagination query.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Pagination.TotalPages != 3 || body.Pagination.TotalItems != 41 {
		t.Errorf("pagination = %+v", body.Pagination)
	}
	if got := body.TeeTimes[0]["datetime"]; got != "2024-07-15T23:30:00-07:00" {
		t.Errorf("datetime = %v", got)
	}
}

func TestTeeTimesRejectsBeforeQuerying(t *testing.T) {
	tests := []string{
		"/api/tee-times?min_price=50&max_price=10",
		"/api/tee-times?limit=0",
		"/api/tee-times?date=15-07-2024",
		"/api/tee-times?starttime=14:00&endtime=09:00",
		"/api/tee-times?page=abc",
		"/api/tee-times?page=922337203685477581",
		"/api/tee-times?min_price=NaN&max_price=10",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			store := &fakeStore{}
			rec := serve(t, http.MethodGet, target, New(store, &fakeRunner{}, nil).TeeTimes)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if store.searched != nil {
				t.Error("store was queried")
			}
		})
	}
}

func TestTeeTimesStoreFailure(t *testing.T) {
	h := New(&fakeStore{err: errors.New("connection refused")}, &fakeRunner{}, nil)
	if rec := serve(t, http.MethodGet, "/api/tee-times", h.TeeTimes); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCourses(t *testing.T) {
	h := New(&fakeStore{names: []string{"Fraserview", "Langara"}}, &fakeRunner{}, nil)
	rec := serve(t, http.MethodGet, "/api/courses", h.Courses)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `["Fraserview","Langara"]` {
		t.Errorf("got %d %s", rec.Code, rec.Body)
	}

	rec = serve(t, http.MethodGet, "/api/courses", New(&fakeStore{}, &fakeRunner{}, nil).Courses)
	if strings.TrimSpace(rec.Body.String()) != `[]` {
		t.Errorf("empty body = %s, want []", rec.Body)
	}
}

func TestScrape(t *testing.T) {
	runner := &fakeRunner{id: uuid.MustParse("6f1c1f53-3c6a-4d0f-9a57-2f1f4a3c9b10")}
	h := New(&fakeStore{}, runner, nil)

	rec := serve(t, http.MethodPost, "/api/scrape", h.Scrape)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body scrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.RunID != runner.id.String() || runner.triggered != pipeline.AllSources {
		t.Errorf("body = %+v, triggered %q", body, runner.triggered)
	}

	rec = serve(t, http.MethodPost, "/api/scrape?source=nowhere", h.Scrape)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "valid sources: all, city") {
		t.Errorf("unknown source: %d %s", rec.Code, rec.Body)
	}

	runner.closed = true
	if rec = serve(t, http.MethodPost, "/api/scrape", h.Scrape); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("after shutdown: %d %s", rec.Code, rec.Body)
	}
}

func TestExpire(t *testing.T) {
	runner := &fakeRunner{expire: &reconcile.Result{Courses: []reconcile.CourseResult{
		{Course: "Fraserview", Expired: 1},
		{Course: "Langara", Expired: 3},
	}}}
	rec := serve(t, http.MethodPost, "/api/expire", New(&fakeStore{}, runner, nil).Expire)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body expireResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Expired != 4 || len(body.Courses) != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestHealth(t *testing.T) {
	rec := serve(t, http.MethodGet, "/healthz", New(nil, nil, nil).Health)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body)
	}
}
