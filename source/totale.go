package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/config"
	"github.com/ze-codes/tee-time-scraper/reconcile"
)

// Element id fragments of the tee sheet rendered by Totale sites.
const (
	totaleCalendarID = "customcaleder_%d"
	totaleDate       = "lblTeeDate_"
	totaleTime       = "lblTeeTime_"
	totalePrice      = "lblPlayers_"
	totaleCourse     = "lblCourseName_"
	totaleStartTee   = "lblStartTee_"
	totalePlayers    = "select[id^='ddlNumPlayers']"
)

const (
	totaleStepTimeout = 20 * time.Second
	totaleSettle      = 3 * time.Second
)

// Totale drives a headless browser through a JavaScript calendar. Each
// calendar item is one day; clicking it renders that day's tee times.
type Totale struct {
	site
	chromePath string
	settle     time.Duration
}

// NewTotale builds a Totale source.
func NewTotale(sc config.SourceConfig, opts Options) (*Totale, error) {
	s, err := newSite(sc, opts)
	if err != nil {
		return nil, err
	}
	return &Totale{site: s, chromePath: opts.ChromePath, settle: totaleSettle}, nil
}

func (t *Totale) Name() string { return t.name }

// FetchRawRecords opens the booking page and reads up to the configured
// number of calendar days. The calendar ending early is not an error.
func (t *Totale) FetchRawRecords(ctx context.Context) ([]reconcile.RawRecord, error) {
	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if t.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(t.chromePath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	bctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(bctx, chromedp.Navigate(t.url)); err != nil {
		return nil, fmt.Errorf("totale: navigate: %w", err)
	}

	var out []reconcile.RawRecord
	for i := range t.days {
		html, err := t.renderDay(bctx, i)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if i == 0 {
				return nil, fmt.Errorf("totale: calendar: %w", err)
			}
			t.log.Info("calendar ended", zap.Int("days", i), zap.Error(err))
			break
		}
		recs, err := t.parseTeeSheet(strings.NewReader(html))
		if err != nil {
			return nil, err
		}
		t.log.Debug("calendar day read", zap.Int("index", i), zap.Int("records", len(recs)))
		out = append(out, recs...)
	}
	return out, nil
}

func (t *Totale) renderDay(ctx context.Context, index int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, totaleStepTimeout)
	defer cancel()

	sel := "#" + fmt.Sprintf(totaleCalendarID, index)
	var html string
	err := chromedp.Run(ctx,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.Sleep(t.settle),
		chromedp.OuterHTML("body", &html, chromedp.ByQuery),
	)
	return html, err
}

// parseTeeSheet reads the tee-time list of one rendered calendar day.
func (t *Totale) parseTeeSheet(r io.Reader) ([]reconcile.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var out []reconcile.RawRecord
	seen := map[reconcile.RawRecord]bool{}
	doc.Find("[id$='_dlTeeTimes'] > span").Each(func(i int, sel *goquery.Selection) {
		field := func(frag string) string {
			return clean(sel.Find("span[id*='" + frag + "']").First().Text())
		}

		date, clock := field(totaleDate), totaleClock(field(totaleTime))
		if date == "" || clock == "" {
			t.log.Warn("tee time without date or time", zap.Bool("data_quality", true), zap.Int("index", i))
			return
		}
		course := field(totaleCourse)
		if course == "" {
			course = t.defaultCourse()
		}

		var sizes []string
		sel.Find(totalePlayers).First().Find("option").Each(func(_ int, o *goquery.Selection) {
			if v := clean(o.Text()); v != "" {
				sizes = append(sizes, v)
			}
		})

		rec := reconcile.RawRecord{
			Course:       course,
			LocalDate:    date,
			LocalTime:    clock,
			Price:        field(totalePrice),
			Currency:     t.currency,
			Availability: strings.Join(sizes, "\n"),
			StartingHole: field(totaleStartTee),
		}
		if seen[rec] {
			return
		}
		seen[rec] = true
		out = append(out, rec)
	})
	return out, nil
}

// totaleClock keeps the "7:30 AM" part of time text that may carry a suffix.
func totaleClock(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	if len(f) >= 2 {
		if mer := strings.ToUpper(f[1]); mer == "AM" || mer == "PM" {
			return f[0] + " " + mer
		}
	}
	return f[0]
}
