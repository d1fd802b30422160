package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldError reports the first field that failed validation in a raw record.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// MapResult is the outcome of mapping a batch of raw job-service records.
type MapResult struct {
	Records []SiteMetrics
	Dropped int
	Errors  []error
}

// MapRecords decodes every raw record, keeping the valid ones. Invalid records
// are dropped and their errors collected; the batch itself never fails.
func MapRecords(raws []json.RawMessage) MapResult {
	res := MapResult{Records: make([]SiteMetrics, 0, len(raws))}
	for i, raw := range raws {
		rec, err := DecodeSiteMetrics(raw)
		if err != nil {
			res.Dropped++
			res.Errors = append(res.Errors, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// DecodeSiteMetrics validates one loosely-typed record and converts it into SiteMetrics.
// Integral floats and numeric strings are accepted for number fields. The
// demographic fields are best effort: a malformed value is left empty instead
// of failing the record.
func DecodeSiteMetrics(raw json.RawMessage) (SiteMetrics, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return SiteMetrics{}, fmt.Errorf("decode record: %w", err)
	}
	if obj == nil {
		return SiteMetrics{}, &FieldError{Field: "$", Reason: "record is not an object"}
	}

	d := &recordDecoder{}
	m := SiteMetrics{
		Name:                d.str(obj, "name"),
		URL:                 d.optStr(obj, "url"),
		GlobalRank:          d.integer(obj, "globalRank"),
		CountryRank:         d.integer(obj, "countryRank"),
		CategoryRank:        d.integer(obj, "categoryRank"),
		CompanyName:         d.str(obj, "companyName"),
		CompanyYearFounded:  d.integer(obj, "companyYearFounded"),
		CompanyEmployeesMin: d.integer(obj, "companyEmployeesMin"),
		CompanyEmployeesMax: d.optInteger(obj, "companyEmployeesMax"),
		TotalVisits:         d.integer(obj, "totalVisits"),
		AvgVisitDuration:    d.str(obj, "avgVisitDuration"),
		PagesPerVisit:       d.float(obj, "pagesPerVisit"),
		BounceRate:          d.float(obj, "bounceRate"),
		OrganicTraffic:      d.float(obj, "organicTraffic"),
		PaidTraffic:         d.float(obj, "paidTraffic"),
		MaleDistribution:    lenientFloat(obj, "maleDistribution"),
		FemaleDistribution:  lenientFloat(obj, "femaleDistribution"),
		AgeDistribution:     lenientAgeGroups(obj),
	}

	if src := d.object(obj, "trafficSources"); src != nil {
		m.TrafficSources = TrafficSources{
			DirectVisitsShare:         d.float(src, "directVisitsShare"),
			OrganicSearchVisitsShare:  d.float(src, "organicSearchVisitsShare"),
			ReferralVisitsShare:       d.float(src, "referralVisitsShare"),
			SocialNetworksVisitsShare: d.float(src, "socialNetworksVisitsShare"),
			MailVisitsShare:           d.float(src, "mailVisitsShare"),
			PaidSearchVisitsShare:     d.float(src, "paidSearchVisitsShare"),
			AdsVisitsShare:            d.float(src, "adsVisitsShare"),
		}
	}
	for _, c := range d.list(obj, "topCountries", true) {
		m.TopCountries = append(m.TopCountries, TopCountry{
			CountryAlpha2Code: d.str(c, "countryAlpha2Code"),
			VisitsShare:       d.float(c, "visitsShare"),
			VisitsShareChange: d.float(c, "visitsShareChange"),
		})
	}
	for _, k := range d.list(obj, "topKeywords", true) {
		m.TopKeywords = append(m.TopKeywords, TopKeyword{
			Name:           d.str(k, "name"),
			Volume:         d.integer(k, "volume"),
			EstimatedValue: d.integer(k, "estimatedValue"),
			CPC:            d.float(k, "cpc"),
		})
	}
	for _, s := range d.list(obj, "socialNetworkDistribution", true) {
		m.SocialNetworkDistribution = append(m.SocialNetworkDistribution, SocialNetworkDistribution{
			Name:        d.str(s, "name"),
			VisitsShare: d.float(s, "visitsShare"),
		})
	}
	for _, c := range d.list(obj, "topSimilarityCompetitors", true) {
		m.TopSimilarityCompetitors = append(m.TopSimilarityCompetitors, TopSimilarityCompetitor{
			Domain:           d.str(c, "domain"),
			VisitsTotalCount: d.integer(c, "visitsTotalCount"),
			Affinity:         d.float(c, "affinity"),
			CategoryRank:     d.optInteger(c, "categoryRank"),
		})
	}
	if d.err != nil {
		return SiteMetrics{}, d.err
	}
	return m, nil
}

func lenientFloat(obj map[string]any, key string) *float64 {
	d := &recordDecoder{}
	f := d.optFloat(obj, key)
	if d.err != nil {
		return nil
	}
	return f
}

func lenientAgeGroups(obj map[string]any) []AgeGroup {
	d := &recordDecoder{}
	var groups []AgeGroup
	for _, a := range d.list(obj, "ageDistribution", false) {
		groups = append(groups, AgeGroup{
			MinAge: d.integer(a, "minAge"),
			MaxAge: d.optInteger(a, "maxAge"),
			Value:  d.float(a, "value"),
		})
	}
	if d.err != nil {
		return nil
	}
	return groups
}

// recordDecoder keeps the first validation failure; later calls become no-ops
// returning zero values.
type recordDecoder struct {
	err error
}

func (d *recordDecoder) fail(key, reason string) {
	if d.err == nil {
		d.err = &FieldError{Field: key, Reason: reason}
	}
}

func (d *recordDecoder) lookup(obj map[string]any, key string, required bool) (any, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		if required {
			d.fail(key, "required")
		}
		return nil, false
	}
	return v, true
}

func (d *recordDecoder) str(obj map[string]any, key string) string {
	v, ok := d.lookup(obj, key, true)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(key, "expected string")
	}
	return s
}

func (d *recordDecoder) optStr(obj map[string]any, key string) string {
	v, ok := d.lookup(obj, key, false)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (d *recordDecoder) number(key string, v any) (json.Number, bool) {
	switch n := v.(type) {
	case json.Number:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return json.Number(s), true
		}
	}
	d.fail(key, "expected number")
	return "", false
}

func (d *recordDecoder) toInt(key string, v any) int64 {
	n, ok := d.number(key, v)
	if !ok {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		d.fail(key, "expected integer")
		return 0
	}
	return int64(f)
}

func (d *recordDecoder) toFloat(key string, v any) float64 {
	n, ok := d.number(key, v)
	if !ok {
		return 0
	}
	f, err := n.Float64()
	if err != nil {
		d.fail(key, "expected float")
	}
	return f
}

func (d *recordDecoder) integer(obj map[string]any, key string) int64 {
	v, ok := d.lookup(obj, key, true)
	if !ok {
		return 0
	}
	return d.toInt(key, v)
}

func (d *recordDecoder) optInteger(obj map[string]any, key string) *int64 {
	v, ok := d.lookup(obj, key, false)
	if !ok {
		return nil
	}
	i := d.toInt(key, v)
	return &i
}

func (d *recordDecoder) float(obj map[string]any, key string) float64 {
	v, ok := d.lookup(obj, key, true)
	if !ok {
		return 0
	}
	return d.toFloat(key, v)
}

func (d *recordDecoder) optFloat(obj map[string]any, key string) *float64 {
	v, ok := d.lookup(obj, key, false)
	if !ok {
		return nil
	}
	f := d.toFloat(key, v)
	return &f
}

func (d *recordDecoder) object(obj map[string]any, key string) map[string]any {
	v, ok := d.lookup(obj, key, true)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.fail(key, "expected object")
	}
	return m
}

func (d *recordDecoder) list(obj map[string]any, key string, required bool) []map[string]any {
	v, ok := d.lookup(obj, key, required)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		d.fail(key, "expected array")
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			d.fail(fmt.Sprintf("%s[%d]", key, i), "expected object")
			return nil
		}
		out = append(out, m)
	}
	return out
}
