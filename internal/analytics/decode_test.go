package analytics

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const validRecord = `{
  "name": "github.com",
  "url": "https://www.similarweb.com/website/github.com/",
  "globalRank": 64,
  "countryRank": 35,
  "categoryRank": 2,
  "companyName": "GitHub Inc.",
  "companyYearFounded": 2008,
  "companyEmployeesMin": 1000,
  "companyEmployeesMax": 5000,
  "totalVisits": 1.2e9,
  "avgVisitDuration": "12:30",
  "pagesPerVisit": 6.8,
  "bounceRate": 0.28,
  "trafficSources": {
    "directVisitsShare": 0.55,
    "organicSearchVisitsShare": 0.30,
    "referralVisitsShare": 0.12,
    "socialNetworksVisitsShare": 0.02,
    "mailVisitsShare": 0.01,
    "paidSearchVisitsShare": 0,
    "adsVisitsShare": 0
  },
  "topCountries": [{"countryAlpha2Code": "US", "visitsShare": 0.38, "visitsShareChange": 0.01}],
  "topKeywords": [{"name": "github", "volume": 30000000, "estimatedValue": 25000000, "cpc": 1.2}],
  "socialNetworkDistribution": [{"name": "Twitter", "visitsShare": 0.45}],
  "topSimilarityCompetitors": [
    {"domain": "gitlab.com", "visitsTotalCount": 150000000, "affinity": 0.9, "categoryRank": 3},
    {"domain": "example.org", "visitsTotalCount": 10, "affinity": 0.1, "categoryRank": null}
  ],
  "organicTraffic": 360000000,
  "paidTraffic": 0,
  "ageDistribution": [{"minAge": 18, "maxAge": 24, "value": 0.2}, {"minAge": 65, "value": 0.05}],
  "maleDistribution": 0.7
}`

func TestDecodeSiteMetricsValid(t *testing.T) {
	t.Parallel()

	m, err := DecodeSiteMetrics(json.RawMessage(validRecord))
	require.NoError(t, err)
	require.Equal(t, "github.com", m.Name)
	require.EqualValues(t, 64, m.GlobalRank)
	require.EqualValues(t, 1_200_000_000, m.TotalVisits)
	require.NotNil(t, m.CompanyEmployeesMax)
	require.EqualValues(t, 5000, *m.CompanyEmployeesMax)
	require.InDelta(t, 0.55, m.TrafficSources.DirectVisitsShare, 1e-9)
	require.Len(t, m.TopSimilarityCompetitors, 2)
	require.NotNil(t, m.TopSimilarityCompetitors[0].CategoryRank)
	require.Nil(t, m.TopSimilarityCompetitors[1].CategoryRank)
	require.Len(t, m.AgeDistribution, 2)
	require.Nil(t, m.AgeDistribution[1].MaxAge)
	require.NotNil(t, m.MaleDistribution)
	require.Nil(t, m.FemaleDistribution)
}

func TestDecodeSiteMetricsRejectsInvalid(t *testing.T) {
	t.Parallel()

	base := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(validRecord), &base))

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"missing name", func(m map[string]any) { delete(m, "name") }, "name"},
		{"null rank", func(m map[string]any) { m["globalRank"] = nil }, "globalRank"},
		{"fractional rank", func(m map[string]any) { m["countryRank"] = 3.5 }, "countryRank"},
		{"string visits", func(m map[string]any) { m["totalVisits"] = "lots" }, "totalVisits"},
		{"numeric duration", func(m map[string]any) { m["avgVisitDuration"] = 750 }, "avgVisitDuration"},
		{"traffic sources not object", func(m map[string]any) { m["trafficSources"] = []any{} }, "trafficSources"},
		{"missing traffic share", func(m map[string]any) {
			src := m["trafficSources"].(map[string]any)
			delete(src, "mailVisitsShare")
		}, "mailVisitsShare"},
		{"countries not array", func(m map[string]any) { m["topCountries"] = "US" }, "topCountries"},
		{"keyword entry not object", func(m map[string]any) { m["topKeywords"] = []any{"github"} }, "topKeywords[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := cloneRecord(t, base)
			tt.mutate(rec)
			raw, err := json.Marshal(rec)
			require.NoError(t, err)

			_, err = DecodeSiteMetrics(raw)
			require.Error(t, err)
			var fe *FieldError
			require.True(t, errors.As(err, &fe), "expected FieldError, got %v", err)
			require.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestDecodeSiteMetricsCoercesNumericStrings(t *testing.T) {
	t.Parallel()

	base := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(validRecord), &base))
	base["globalRank"] = "27"
	base["totalVisits"] = " 1500 "
	base["bounceRate"] = "0.31"
	base["companyEmployeesMax"] = "5000.0"
	raw, err := json.Marshal(base)
	require.NoError(t, err)

	m, err := DecodeSiteMetrics(raw)
	require.NoError(t, err)
	require.EqualValues(t, 27, m.GlobalRank)
	require.EqualValues(t, 1500, m.TotalVisits)
	require.InDelta(t, 0.31, m.BounceRate, 1e-9)
	require.NotNil(t, m.CompanyEmployeesMax)
	require.EqualValues(t, 5000, *m.CompanyEmployeesMax)
}

func TestDecodeSiteMetricsRejectsOutOfRangeIntegers(t *testing.T) {
	t.Parallel()

	for _, rank := range []string{"9223372036854775808", "-9223372036854775809", "1e19", `"NaN"`, `"Inf"`} {
		base := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(validRecord), &base))
		base["globalRank"] = json.RawMessage(rank)
		raw, err := json.Marshal(base)
		require.NoError(t, err)

		_, err = DecodeSiteMetrics(raw)
		var fe *FieldError
		require.True(t, errors.As(err, &fe), "rank %s: expected FieldError, got %v", rank, err)
		require.Equal(t, "globalRank", fe.Field)
	}
}

func TestDecodeSiteMetricsToleratesBadDemographics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(map[string]any)
		check  func(*testing.T, SiteMetrics)
	}{
		{"age group missing min", func(m map[string]any) {
			m["ageDistribution"] = []any{map[string]any{"minAge": nil, "maxAge": 24, "value": 0.2}}
		}, func(t *testing.T, s SiteMetrics) {
			require.Nil(t, s.AgeDistribution)
			require.NotNil(t, s.MaleDistribution)
		}},
		{"age distribution not array", func(m map[string]any) { m["ageDistribution"] = "unknown" }, func(t *testing.T, s SiteMetrics) {
			require.Nil(t, s.AgeDistribution)
		}},
		{"male share not a number", func(m map[string]any) { m["maleDistribution"] = "n/a" }, func(t *testing.T, s SiteMetrics) {
			require.Nil(t, s.MaleDistribution)
			require.Len(t, s.AgeDistribution, 2)
		}},
		{"female share object", func(m map[string]any) { m["femaleDistribution"] = map[string]any{} }, func(t *testing.T, s SiteMetrics) {
			require.Nil(t, s.FemaleDistribution)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := map[string]any{}
			require.NoError(t, json.Unmarshal([]byte(validRecord), &rec))
			tt.mutate(rec)
			raw, err := json.Marshal(rec)
			require.NoError(t, err)

			m, err := DecodeSiteMetrics(raw)
			require.NoError(t, err)
			require.Equal(t, "github.com", m.Name)
			tt.check(t, m)
		})
	}
}

func TestDecodeSiteMetricsNotAnObject(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`null`, `[1,2]`, `"x"`, `{`} {
		_, err := DecodeSiteMetrics(json.RawMessage(raw))
		require.Error(t, err, raw)
	}
}

func TestMapRecordsDropsInvalid(t *testing.T) {
	t.Parallel()

	raws := []json.RawMessage{
		json.RawMessage(validRecord),
		json.RawMessage(`{"name": "broken"}`),
		json.RawMessage(validRecord),
		json.RawMessage(`42`),
	}
	res := MapRecords(raws)
	require.Len(t, res.Records, 2)
	require.Equal(t, 2, res.Dropped)
	require.Len(t, res.Errors, 2)
	require.Contains(t, res.Errors[0].Error(), "record 1")
}

func TestMapRecordsEmpty(t *testing.T) {
	t.Parallel()

	res := MapRecords(nil)
	require.Empty(t, res.Records)
	require.Zero(t, res.Dropped)
}

func cloneRecord(t *testing.T, src map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(src)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
