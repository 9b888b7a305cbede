package moex

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/bondwatch/internal/domain"
)

// issDoc is the envelope of a MOEX ISS response. Each section is a
// column list plus row-major data; rows carry mixed string/number/null
// values that must be zipped against the columns.
type issDoc struct {
	Securities    issSection `json:"securities"`
	Marketdata    issSection `json:"marketdata"`
	CouponPeriods issSection `json:"couponperiods"`
}

type issSection struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

// records zips columns and rows into keyed maps
func (s issSection) records() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(s.Data))
	for _, row := range s.Data {
		rec := make(map[string]interface{}, len(s.Columns))
		for i, col := range s.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// asFloat coerces an ISS cell to a float. ISS serves numbers both as
// JSON numbers and as strings, and uses null/"" for absent values.
func asFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		if val == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asString coerces an ISS cell to a string
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// parseISSDate parses the ISS YYYY-MM-DD date format. The feed uses
// "0000-00-00" for perpetual instruments; those parse as absent.
func parseISSDate(s string) (time.Time, bool) {
	if s == "" || s == "0000-00-00" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// classifySector maps the ISS security type hint to a sector
func classifySector(sectype, name string) domain.Sector {
	upperName := strings.ToUpper(name)
	switch {
	case strings.Contains(sectype, "ofz"), strings.Contains(sectype, "gos"),
		strings.Contains(strings.ToUpper(sectype), "OFZ"),
		strings.Contains(upperName, "ОФЗ"), strings.Contains(upperName, "TRES"):
		return domain.SectorGovernment
	case strings.Contains(strings.ToUpper(sectype), "CORP"), strings.Contains(upperName, "CORP"):
		return domain.SectorCorporate
	default:
		return domain.SectorOther
	}
}

// parseBond converts merged securities+marketdata records into a Bond.
//
// ISS quotes bond prices as percent of face; the canonical schema is
// currency-absolute, so the conversion happens here and nowhere else.
// Accrued interest and turnover are already absolute in the feed.
func parseBond(sec, md map[string]interface{}, board string) (*domain.Bond, error) {
	secid := asString(sec["SECID"])
	if secid == "" {
		return nil, fmt.Errorf("record has no SECID")
	}

	maturity, ok := parseISSDate(asString(sec["MATDATE"]))
	if !ok {
		return nil, fmt.Errorf("bond %s has no maturity date", secid)
	}

	face, ok := asFloat(sec["FACEVALUE"])
	if !ok || face <= 0 {
		return nil, fmt.Errorf("bond %s has no usable face value", secid)
	}

	pricePct, ok := asFloat(md["LAST"])
	if !ok {
		pricePct, ok = asFloat(md["MARKETPRICE"])
	}
	if !ok || pricePct <= 0 {
		return nil, fmt.Errorf("bond %s has no usable price", secid)
	}

	b := &domain.Bond{
		SecID:        secid,
		ISIN:         asString(sec["ISIN"]),
		Board:        board,
		Name:         asString(sec["SHORTNAME"]),
		Sector:       classifySector(asString(sec["SECTYPE"]), asString(sec["SHORTNAME"])),
		FaceValue:    face,
		Price:        pricePct / 100 * face,
		MaturityDate: maturity,
		YieldStatus:  domain.YieldPending,
	}

	if rate, ok := asFloat(sec["COUPONPERCENT"]); ok {
		b.CouponRate = &rate
	}
	if days, ok := asFloat(sec["COUPONPERIOD"]); ok {
		b.CouponPeriodDay = int(days)
	}
	if accrued, ok := asFloat(md["ACCRUEDINT"]); ok {
		b.AccruedInterest = accrued
	}
	if volume, ok := asFloat(md["VALTODAY"]); ok {
		b.Volume = volume
	}

	return b, nil
}

// parseCouponPeriods converts the couponperiods section to domain records,
// dropping rows without a date or a positive amount
func parseCouponPeriods(section issSection) []domain.CouponPeriod {
	var periods []domain.CouponPeriod
	for _, rec := range section.records() {
		date, ok := parseISSDate(asString(rec["coupondate"]))
		if !ok {
			continue
		}
		amount, ok := asFloat(rec["value"])
		if !ok || amount <= 0 {
			continue
		}
		periods = append(periods, domain.CouponPeriod{Date: date, Amount: amount})
	}
	return periods
}
