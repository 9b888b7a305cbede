package moex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bondwatch/internal/clientdata"
	"github.com/aristath/bondwatch/internal/database"
	"github.com/aristath/bondwatch/internal/domain"
)

const listingPage1 = `{
	"securities": {
		"columns": ["SECID","ISIN","SHORTNAME","COUPONPERCENT","COUPONPERIOD","MATDATE","FACEVALUE","SECTYPE"],
		"data": [
			["SU26240", "RU000A103BR0", "ОФЗ 26240", 7.1, 182, "2036-07-30", 1000, "ofz_bond"],
			["RU000CORP1", "RU000A0CORP1", "Demo Corp BO-01", 12.5, 91, "2028-03-15", 1000, "corporate_bond"],
			["RU000BAD01", "RU000A0BAD01", "No Price Bond", 9.0, 182, "2029-01-01", 1000, "corporate_bond"]
		]
	},
	"marketdata": {
		"columns": ["SECID","LAST","MARKETPRICE","ACCRUEDINT","VALTODAY"],
		"data": [
			["SU26240", 61.5, 61.4, 12.3, 5000000],
			["RU000CORP1", null, 98.2, 4.1, 120000],
			["RU000BAD01", null, null, 0, 0]
		]
	}
}`

const listingEmpty = `{
	"securities": {"columns": ["SECID"], "data": []},
	"marketdata": {"columns": ["SECID"], "data": []}
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "TQOB", nil, zerolog.Nop())
}

func newTestCache(t *testing.T) *clientdata.Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := clientdata.NewRepository(db.Conn())
	require.NoError(t, repo.EnsureSchema())
	return repo
}

func TestFetchBonds(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "0" {
			_, _ = w.Write([]byte(listingPage1))
			return
		}
		_, _ = w.Write([]byte(listingEmpty))
	}))

	bonds, err := c.FetchBonds(context.Background())
	require.NoError(t, err)
	require.Len(t, bonds, 2, "record without a price must be skipped")

	ofz := bonds[0]
	assert.Equal(t, "SU26240", ofz.SecID)
	assert.Equal(t, "RU000A103BR0", ofz.ISIN)
	assert.Equal(t, "TQOB", ofz.Board)
	assert.Equal(t, domain.SectorGovernment, ofz.Sector)
	assert.InDelta(t, 615.0, ofz.Price, 1e-9, "61.5 percent of face 1000")
	assert.InDelta(t, 12.3, ofz.AccruedInterest, 1e-9)
	assert.InDelta(t, 5000000, ofz.Volume, 1e-9)
	require.NotNil(t, ofz.CouponRate)
	assert.InDelta(t, 7.1, *ofz.CouponRate, 1e-9)
	assert.Equal(t, 182, ofz.CouponPeriodDay)
	assert.Equal(t, time.Date(2036, 7, 30, 0, 0, 0, 0, time.UTC), ofz.MaturityDate)
	assert.Equal(t, domain.YieldPending, ofz.YieldStatus)

	corp := bonds[1]
	assert.Equal(t, domain.SectorCorporate, corp.Sector)
	assert.InDelta(t, 982.0, corp.Price, 1e-9, "LAST is null, falls back to MARKETPRICE")
}

func TestFetchBonds_Paginates(t *testing.T) {
	var pagesServed atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed.Add(1)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		if start >= pageSize {
			_, _ = w.Write([]byte(listingEmpty))
			return
		}

		// full page of pageSize identical-shape records forces a second request
		page := `{"securities":{"columns":["SECID","ISIN","SHORTNAME","MATDATE","FACEVALUE"],"data":[`
		for i := 0; i < pageSize; i++ {
			if i > 0 {
				page += ","
			}
			page += `["SEC` + strconv.Itoa(i) + `","ISIN` + strconv.Itoa(i) + `","Bond","2030-01-01",1000]`
		}
		page += `]},"marketdata":{"columns":["SECID","LAST"],"data":[`
		for i := 0; i < pageSize; i++ {
			if i > 0 {
				page += ","
			}
			page += `["SEC` + strconv.Itoa(i) + `",100.0]`
		}
		page += `]}}`
		_, _ = w.Write([]byte(page))
	}))

	bonds, err := c.FetchBonds(context.Background())
	require.NoError(t, err)
	assert.Len(t, bonds, pageSize)
	assert.Equal(t, int32(2), pagesServed.Load())
}

func TestFetchBonds_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.FetchBonds(context.Background())
	assert.Error(t, err)
}

const couponPeriodsBody = `{
	"couponperiods": {
		"columns": ["isin","coupondate","value"],
		"data": [
			["RU000A0TEST1", "2027-02-01", 40.64],
			["RU000A0TEST1", "2027-08-01", 40.64],
			["RU000A0TEST1", "0000-00-00", 40.64],
			["RU000A0TEST1", "2028-02-01", null]
		]
	}
}`

func TestFetchCouponPeriods(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(couponPeriodsBody))
	}))

	periods, err := c.FetchCouponPeriods(context.Background(), "RU000A0TEST1")
	require.NoError(t, err)
	require.Len(t, periods, 2, "rows without a date or amount are dropped")
	assert.Equal(t, time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), periods[0].Date)
	assert.InDelta(t, 40.64, periods[0].Amount, 1e-9)
}

func TestFetchCouponPeriods_CacheFirst(t *testing.T) {
	var apiCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		_, _ = w.Write([]byte(couponPeriodsBody))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "TQOB", newTestCache(t), zerolog.Nop())

	first, err := c.FetchCouponPeriods(context.Background(), "RU000A0TEST1")
	require.NoError(t, err)

	second, err := c.FetchCouponPeriods(context.Background(), "RU000A0TEST1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), apiCalls.Load(), "second lookup must be served from cache")
}

func TestFetchCouponPeriods_StaleFallbackOnError(t *testing.T) {
	cache := newTestCache(t)
	stale := []domain.CouponPeriod{
		{Date: time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), Amount: 40.64},
	}
	require.NoError(t, cache.Store("moex_couponperiods", "RU000A0TEST1", stale, -time.Minute))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "TQOB", cache, zerolog.Nop())

	periods, err := c.FetchCouponPeriods(context.Background(), "RU000A0TEST1")
	require.NoError(t, err)
	assert.Equal(t, stale, periods)
}

func TestFetchCouponPeriods_RequiresISIN(t *testing.T) {
	c := NewClient("http://unused", "TQOB", nil, zerolog.Nop())
	_, err := c.FetchCouponPeriods(context.Background(), "")
	assert.Error(t, err)
}

func TestEnrichCouponPeriods(t *testing.T) {
	var apiCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		_, _ = w.Write([]byte(couponPeriodsBody))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "TQOB", nil, zerolog.Nop())

	rate := 8.0
	floater := &domain.Bond{SecID: "FLT", ISIN: "RU000A0TEST1",
		MaturityDate: time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC)}
	fixed := &domain.Bond{SecID: "FIX", ISIN: "RU000A0TEST2", CouponRate: &rate,
		CouponPeriodDay: 182, MaturityDate: time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC)}

	c.EnrichCouponPeriods(context.Background(), []*domain.Bond{floater, fixed})

	assert.Equal(t, int32(1), apiCalls.Load(), "only the rate-less bond needs the declared schedule")
	assert.Len(t, floater.CouponPeriods, 2)
	assert.Empty(t, fixed.CouponPeriods)
}

func TestNeedsDeclaredSchedule(t *testing.T) {
	rate := 8.0
	zero := 0.0

	tests := []struct {
		name string
		bond *domain.Bond
		want bool
	}{
		{"no rate", &domain.Bond{}, true},
		{"zero rate", &domain.Bond{CouponRate: &zero}, true},
		{"standard semiannual", &domain.Bond{CouponRate: &rate, CouponPeriodDay: 182}, false},
		{"standard quarterly with slack", &domain.Bond{CouponRate: &rate, CouponPeriodDay: 93}, false},
		{"irregular period", &domain.Bond{CouponRate: &rate, CouponPeriodDay: 140}, true},
		{"unknown period", &domain.Bond{CouponRate: &rate, CouponPeriodDay: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsDeclaredSchedule(tt.bond))
		})
	}
}
