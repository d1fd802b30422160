// Package analytics defines the site-metrics and technology-profile types shared across subsystems.
package analytics

// AnalysisRequest is the body accepted by both analysis endpoints.
type AnalysisRequest struct {
	Websites []string `json:"websites"`
	UserID   string   `json:"userId"`
}

// TrafficSources holds the share of visits per acquisition channel. Values are
// fractions as reported upstream; they are not required to sum to 1.
type TrafficSources struct {
	DirectVisitsShare         float64 `json:"directVisitsShare"`
	OrganicSearchVisitsShare  float64 `json:"organicSearchVisitsShare"`
	ReferralVisitsShare       float64 `json:"referralVisitsShare"`
	SocialNetworksVisitsShare float64 `json:"socialNetworksVisitsShare"`
	MailVisitsShare           float64 `json:"mailVisitsShare"`
	PaidSearchVisitsShare     float64 `json:"paidSearchVisitsShare"`
	AdsVisitsShare            float64 `json:"adsVisitsShare"`
}

// TopCountry is one entry of the visits-by-country breakdown.
type TopCountry struct {
	CountryAlpha2Code string  `json:"countryAlpha2Code"`
	VisitsShare       float64 `json:"visitsShare"`
	VisitsShareChange float64 `json:"visitsShareChange"`
}

// TopKeyword is a search keyword driving traffic to the site.
type TopKeyword struct {
	Name           string  `json:"name"`
	Volume         int64   `json:"volume"`
	EstimatedValue int64   `json:"estimatedValue"`
	CPC            float64 `json:"cpc"`
}

// SocialNetworkDistribution is the share of social traffic from one network.
type SocialNetworkDistribution struct {
	Name        string  `json:"name"`
	VisitsShare float64 `json:"visitsShare"`
}

// TopSimilarityCompetitor is a site with an overlapping audience.
type TopSimilarityCompetitor struct {
	Domain           string  `json:"domain"`
	VisitsTotalCount int64   `json:"visitsTotalCount"`
	Affinity         float64 `json:"affinity"`
	CategoryRank     *int64  `json:"categoryRank"`
}

// AgeGroup is one bucket of the audience age distribution. MaxAge is nil for
// the open-ended top bucket.
type AgeGroup struct {
	MinAge int64   `json:"minAge"`
	MaxAge *int64  `json:"maxAge,omitempty"`
	Value  float64 `json:"value"`
}

// SiteMetrics is the validated per-domain record produced by the job service.
type SiteMetrics struct {
	Name                      string                      `json:"name"`
	URL                       string                      `json:"url,omitempty"`
	GlobalRank                int64                       `json:"globalRank"`
	CountryRank               int64                       `json:"countryRank"`
	CategoryRank              int64                       `json:"categoryRank"`
	CompanyName               string                      `json:"companyName"`
	CompanyYearFounded        int64                       `json:"companyYearFounded"`
	CompanyEmployeesMin       int64                       `json:"companyEmployeesMin"`
	CompanyEmployeesMax       *int64                      `json:"companyEmployeesMax"`
	TotalVisits               int64                       `json:"totalVisits"`
	AvgVisitDuration          string                      `json:"avgVisitDuration"`
	PagesPerVisit             float64                     `json:"pagesPerVisit"`
	BounceRate                float64                     `json:"bounceRate"`
	TrafficSources            TrafficSources              `json:"trafficSources"`
	TopCountries              []TopCountry                `json:"topCountries"`
	TopKeywords               []TopKeyword                `json:"topKeywords"`
	SocialNetworkDistribution []SocialNetworkDistribution `json:"socialNetworkDistribution"`
	TopSimilarityCompetitors  []TopSimilarityCompetitor   `json:"topSimilarityCompetitors"`
	OrganicTraffic            float64                     `json:"organicTraffic"`
	PaidTraffic               float64                     `json:"paidTraffic"`
	AgeDistribution           []AgeGroup                  `json:"ageDistribution,omitempty"`
	MaleDistribution          *float64                    `json:"maleDistribution,omitempty"`
	FemaleDistribution        *float64                    `json:"femaleDistribution,omitempty"`
}

// Technology is a single fingerprinted technology and its category tag.
type Technology struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// TechProfile lists the technologies detected on a domain. Technologies may be empty.
type TechProfile struct {
	Domain       string       `json:"domain"`
	Technologies []Technology `json:"technologies"`
}

// AnalysisResult is a SiteMetrics record optionally enriched with a TechProfile.
type AnalysisResult struct {
	SiteMetrics
	BuiltWith *TechProfile `json:"builtwith_result,omitempty"`
}

// AnalysisResponse is the envelope returned by the analysis endpoints.
type AnalysisResponse struct {
	Success bool             `json:"success"`
	Data    []AnalysisResult `json:"data"`
	Count   int              `json:"count"`
	Note    string           `json:"note,omitempty"`
	Dropped int              `json:"dropped,omitempty"`
}

// WithoutTechProfile returns copies of the results with the technology profile cleared.
func WithoutTechProfile(results []AnalysisResult) []AnalysisResult {
	out := make([]AnalysisResult, len(results))
	for i, r := range results {
		r.BuiltWith = nil
		out[i] = r
	}
	return out
}

// FromMetrics wraps bare metrics records as un-enriched results.
func FromMetrics(metrics []SiteMetrics) []AnalysisResult {
	out := make([]AnalysisResult, len(metrics))
	for i, m := range metrics {
		out[i] = AnalysisResult{SiteMetrics: m}
	}
	return out
}
