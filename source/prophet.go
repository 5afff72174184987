package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/config"
	"github.com/ze-codes/tee-time-scraper/reconcile"
	"github.com/ze-codes/tee-time-scraper/tz"
)

// prophetDateLayout is the Date query parameter format, e.g. 2024-7-5.
const prophetDateLayout = "2006-1-2"

var clockPattern = regexp.MustCompile(`(?i)(\d{1,2}:\d{2})\s*([ap]m)?`)

// Prophet reads date-paged tee sheets served as plain HTML. The configured
// URL ends with the Date parameter; each day is fetched by appending the date.
type Prophet struct {
	site
	client *http.Client
}

// NewProphet builds a Prophet source.
func NewProphet(sc config.SourceConfig, opts Options) (*Prophet, error) {
	s, err := newSite(sc, opts)
	if err != nil {
		return nil, err
	}
	return &Prophet{site: s, client: opts.Client}, nil
}

func (p *Prophet) Name() string { return p.name }

// FetchRawRecords reads every configured day. A day that fails is logged and
// left out, so its date is simply not covered by this scrape; the call fails
// only when no day could be read.
func (p *Prophet) FetchRawRecords(ctx context.Context) ([]reconcile.RawRecord, error) {
	var (
		out  []reconcile.RawRecord
		errs []error
	)
	for _, day := range p.dates() {
		date := day.Format(prophetDateLayout)
		recs, err := p.fetchDay(ctx, date)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warn("tee sheet unavailable", zap.String("date", date), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		p.log.Debug("tee sheet read", zap.String("date", date), zap.Int("records", len(recs)))
		out = append(out, recs...)
	}
	if len(errs) == len(p.dates()) {
		return nil, fmt.Errorf("no tee sheet could be read: %w", errors.Join(errs...))
	}
	return out, nil
}

func (p *Prophet) fetchDay(ctx context.Context, date string) ([]reconcile.RawRecord, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+date, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return p.parseTeeSheet(resp.Body, date)
}

// parseTeeSheet extracts one record per .teetime element. Elements without a
// time or course are skipped and logged.
func (p *Prophet) parseTeeSheet(r io.Reader, date string) ([]reconcile.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	localDate := date
	if d, err := tz.ParseDate(date); err == nil {
		localDate = d.Format(tz.DateLayout)
	}

	var out []reconcile.RawRecord
	doc.Find(".teeSheet .teetime").Each(func(i int, sel *goquery.Selection) {
		clock := prophetClock(sel)
		if clock == "" {
			p.log.Warn("tee time without time", zap.Bool("data_quality", true), zap.String("date", date), zap.Int("index", i))
			return
		}

		course := clean(sel.Find(".p-nopadding p").First().Text())
		if course == "" {
			if name, ok := sel.Find("div[name^='course-']").First().Attr("name"); ok {
				course = strings.TrimPrefix(name, "course-")
			}
		}
		if course == "" {
			course = p.defaultCourse()
		}
		if course == "" {
			p.log.Warn("tee time without course", zap.Bool("data_quality", true), zap.String("date", date), zap.String("time", clock))
			return
		}

		price := clean(sel.Find(".priceDiv h3").First().Text())
		if price == "" {
			price, _ = sel.Attr("data-price")
		}
		players := clean(sel.Find(".player p").First().Text())
		if players == "" {
			players, _ = sel.Attr("data-player")
		}

		out = append(out, reconcile.RawRecord{
			Course:       course,
			LocalDate:    localDate,
			LocalTime:    clock,
			Price:        price,
			Currency:     p.currency,
			Availability: players,
		})
	})
	return out, nil
}

func prophetClock(sel *goquery.Selection) string {
	text, _ := sel.Attr("teetime")
	if strings.TrimSpace(text) == "" {
		text = sel.Find(".timeDiv span").First().Text()
	}
	m := clockPattern.FindStringSubmatch(clean(text))
	if m == nil {
		return ""
	}
	if m[2] != "" {
		return m[1] + " " + strings.ToUpper(m[2])
	}
	return m[1]
}
