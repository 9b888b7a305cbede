// Package moex fetches bond reference and market data from the MOEX ISS
// API. Coupon schedules are cached persistently in client_data.db since
// they change rarely and the per-ISIN endpoint is slow to walk.
package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bondwatch/internal/clientdata"
	"github.com/aristath/bondwatch/internal/domain"
)

const (
	// pageSize is the ISS pagination window for board listings
	pageSize = 100

	securitiesColumns = "SECID,ISIN,SHORTNAME,COUPONPERCENT,COUPONPERIOD,MATDATE,FACEVALUE,SECTYPE"
	marketdataColumns = "SECID,LAST,MARKETPRICE,ACCRUEDINT,VALTODAY"
)

// Client talks to the MOEX ISS API
type Client struct {
	baseURL    string
	board      string
	httpClient *http.Client
	cache      *clientdata.Repository
	log        zerolog.Logger
}

// NewClient creates a MOEX ISS client. cache may be nil; coupon period
// lookups then always hit the API.
func NewClient(baseURL, board string, cache *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		board:   board,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache: cache,
		log:   log.With().Str("client", "moex").Logger(),
	}
}

func (c *Client) fetchDoc(ctx context.Context, rawURL string) (*issDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ISS request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ISS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ISS returned status %d for %s", resp.StatusCode, rawURL)
	}

	var doc issDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode ISS response: %w", err)
	}
	return &doc, nil
}

func (c *Client) listingURL(start int) string {
	q := url.Values{}
	q.Set("iss.meta", "off")
	q.Set("iss.only", "securities,marketdata")
	q.Set("securities.columns", securitiesColumns)
	q.Set("marketdata.columns", marketdataColumns)
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(pageSize))

	return fmt.Sprintf("%s/engines/stock/markets/bonds/boards/%s/securities.json?%s",
		c.baseURL, c.board, q.Encode())
}

// FetchBonds pages through the board listing, merging the securities and
// marketdata sections on SECID. Records missing required fields (maturity,
// face value, price) are skipped, not fatal; a thin board section near the
// close routinely has half its rows without trades.
func (c *Client) FetchBonds(ctx context.Context) ([]*domain.Bond, error) {
	var bonds []*domain.Bond
	skipped := 0

	for start := 0; ; start += pageSize {
		doc, err := c.fetchDoc(ctx, c.listingURL(start))
		if err != nil {
			return nil, err
		}

		secRecords := doc.Securities.records()
		if len(secRecords) == 0 {
			break
		}

		marketBySecID := make(map[string]map[string]interface{}, len(secRecords))
		for _, md := range doc.Marketdata.records() {
			if secid := asString(md["SECID"]); secid != "" {
				marketBySecID[secid] = md
			}
		}

		for _, sec := range secRecords {
			md := marketBySecID[asString(sec["SECID"])]
			if md == nil {
				md = map[string]interface{}{}
			}
			bond, err := parseBond(sec, md, c.board)
			if err != nil {
				skipped++
				c.log.Debug().Err(err).Msg("Skipping unparseable bond record")
				continue
			}
			bonds = append(bonds, bond)
		}

		if len(secRecords) < pageSize {
			break
		}
	}

	c.log.Info().
		Str("board", c.board).
		Int("bonds", len(bonds)).
		Int("skipped", skipped).
		Msg("Fetched bond listing from MOEX")

	return bonds, nil
}

// FetchCouponPeriods returns the declared coupon schedule for one bond,
// cache-first. A fresh cache entry short-circuits the API call; on API
// failure a stale entry is served rather than returning an error.
func (c *Client) FetchCouponPeriods(ctx context.Context, isin string) ([]domain.CouponPeriod, error) {
	if isin == "" {
		return nil, fmt.Errorf("cannot fetch coupon periods without ISIN")
	}

	if c.cache != nil {
		var cached []domain.CouponPeriod
		hit, err := c.cache.GetIfFresh("moex_couponperiods", isin, &cached)
		if err != nil {
			c.log.Warn().Err(err).Str("isin", isin).Msg("Coupon period cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	rawURL := fmt.Sprintf(
		"%s/statistics/engines/stock/markets/bonds/bondization/%s.json?iss.meta=off&iss.only=couponperiods&limit=unlimited",
		c.baseURL, isin)

	doc, err := c.fetchDoc(ctx, rawURL)
	if err != nil {
		if c.cache != nil {
			var stale []domain.CouponPeriod
			hit, cacheErr := c.cache.Get("moex_couponperiods", isin, &stale)
			if cacheErr == nil && hit {
				c.log.Warn().Err(err).Str("isin", isin).
					Msg("Coupon period fetch failed, serving stale cache")
				return stale, nil
			}
		}
		return nil, err
	}

	periods := parseCouponPeriods(doc.CouponPeriods)

	if c.cache != nil {
		if err := c.cache.Store("moex_couponperiods", isin, periods, clientdata.TTLCouponPeriods); err != nil {
			c.log.Warn().Err(err).Str("isin", isin).Msg("Failed to cache coupon periods")
		}
	}

	return periods, nil
}

// EnrichCouponPeriods attaches declared coupon schedules to bonds that
// would otherwise fall back to rate approximation: those with no coupon
// rate or an irregular period length. Fetch failures leave the bond
// untouched and the cycle continues.
func (c *Client) EnrichCouponPeriods(ctx context.Context, bonds []*domain.Bond) {
	enriched, failed := 0, 0
	for _, b := range bonds {
		if b.ISIN == "" || !needsDeclaredSchedule(b) {
			continue
		}
		periods, err := c.FetchCouponPeriods(ctx, b.ISIN)
		if err != nil {
			failed++
			c.log.Debug().Err(err).Str("secid", b.SecID).Msg("Coupon period enrichment failed")
			continue
		}
		if len(periods) > 0 {
			b.CouponPeriods = periods
			enriched++
		}
	}
	if enriched > 0 || failed > 0 {
		c.log.Info().Int("enriched", enriched).Int("failed", failed).
			Msg("Coupon period enrichment done")
	}
}

// needsDeclaredSchedule reports whether rate approximation alone would
// misprice the bond: floaters and amortizers report no usable fixed rate,
// and odd period lengths signal an irregular schedule.
func needsDeclaredSchedule(b *domain.Bond) bool {
	if b.CouponRate == nil || *b.CouponRate <= 0 {
		return true
	}
	if b.CouponPeriodDay <= 0 {
		return false
	}
	// 7 days of slack around the standard monthly..annual period lengths
	for _, std := range []int{30, 91, 182, 365} {
		if abs(b.CouponPeriodDay-std) <= 7 {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
