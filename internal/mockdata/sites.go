// Package mockdata holds the canned analytics and technology profiles served
// when live services are unavailable.
package mockdata

import (
	"github.com/JakeFAU/siteintel/internal/analytics"
)

const similarwebSiteURL = "https://www.similarweb.com/website/"

func i64(v int64) *int64 { return &v }

func linkedIn() analytics.SiteMetrics {
	return analytics.SiteMetrics{
		Name:                "LinkedIn",
		URL:                 similarwebSiteURL + "linkedin.com/",
		GlobalRank:          27,
		CountryRank:         15,
		CategoryRank:        1,
		CompanyName:         "LinkedIn Corporation",
		CompanyYearFounded:  2003,
		CompanyEmployeesMin: 10000,
		CompanyEmployeesMax: i64(50000),
		TotalVisits:         2500000000,
		AvgVisitDuration:    "8:45",
		PagesPerVisit:       4.2,
		BounceRate:          0.35,
		TrafficSources: analytics.TrafficSources{
			DirectVisitsShare:         0.45,
			OrganicSearchVisitsShare:  0.35,
			ReferralVisitsShare:       0.10,
			SocialNetworksVisitsShare: 0.05,
			MailVisitsShare:           0.03,
			PaidSearchVisitsShare:     0.02,
			AdsVisitsShare:            0.00,
		},
		TopCountries: []analytics.TopCountry{
			{CountryAlpha2Code: "US", VisitsShare: 0.42, VisitsShareChange: 0.02},
			{CountryAlpha2Code: "IN", VisitsShare: 0.15, VisitsShareChange: 0.05},
			{CountryAlpha2Code: "GB", VisitsShare: 0.08, VisitsShareChange: -0.01},
		},
		TopKeywords: []analytics.TopKeyword{
			{Name: "linkedin", Volume: 50000000, EstimatedValue: 45000000, CPC: 2.50},
			{Name: "linkedin login", Volume: 25000000, EstimatedValue: 20000000, CPC: 1.80},
			{Name: "jobs", Volume: 15000000, EstimatedValue: 12000000, CPC: 3.20},
		},
		SocialNetworkDistribution: []analytics.SocialNetworkDistribution{
			{Name: "Facebook", VisitsShare: 0.35},
			{Name: "Twitter", VisitsShare: 0.25},
			{Name: "Instagram", VisitsShare: 0.20},
		},
		TopSimilarityCompetitors: []analytics.TopSimilarityCompetitor{
			{Domain: "indeed.com", VisitsTotalCount: 1800000000, Affinity: 0.85, CategoryRank: i64(2)},
			{Domain: "glassdoor.com", VisitsTotalCount: 500000000, Affinity: 0.75, CategoryRank: i64(5)},
		},
		OrganicTraffic: 875000000,
		PaidTraffic:    50000000,
	}
}

func gitHub() analytics.SiteMetrics {
	return analytics.SiteMetrics{
		Name:                "GitHub",
		URL:                 similarwebSiteURL + "github.com/",
		GlobalRank:          64,
		CountryRank:         35,
		CategoryRank:        2,
		CompanyName:         "GitHub Inc.",
		CompanyYearFounded:  2008,
		CompanyEmployeesMin: 1000,
		CompanyEmployeesMax: i64(5000),
		TotalVisits:         1200000000,
		AvgVisitDuration:    "12:30",
		PagesPerVisit:       6.8,
		BounceRate:          0.28,
		TrafficSources: analytics.TrafficSources{
			DirectVisitsShare:         0.55,
			OrganicSearchVisitsShare:  0.30,
			ReferralVisitsShare:       0.12,
			SocialNetworksVisitsShare: 0.02,
			MailVisitsShare:           0.01,
			PaidSearchVisitsShare:     0.00,
			AdsVisitsShare:            0.00,
		},
		TopCountries: []analytics.TopCountry{
			{CountryAlpha2Code: "US", VisitsShare: 0.38, VisitsShareChange: 0.01},
			{CountryAlpha2Code: "CN", VisitsShare: 0.12, VisitsShareChange: 0.03},
			{CountryAlpha2Code: "IN", VisitsShare: 0.11, VisitsShareChange: 0.04},
		},
		TopKeywords: []analytics.TopKeyword{
			{Name: "github", Volume: 30000000, EstimatedValue: 25000000, CPC: 1.20},
			{Name: "git", Volume: 20000000, EstimatedValue: 15000000, CPC: 0.80},
			{Name: "open source", Volume: 8000000, EstimatedValue: 6000000, CPC: 1.50},
		},
		SocialNetworkDistribution: []analytics.SocialNetworkDistribution{
			{Name: "Twitter", VisitsShare: 0.45},
			{Name: "Reddit", VisitsShare: 0.30},
			{Name: "LinkedIn", VisitsShare: 0.15},
		},
		TopSimilarityCompetitors: []analytics.TopSimilarityCompetitor{
			{Domain: "gitlab.com", VisitsTotalCount: 150000000, Affinity: 0.90, CategoryRank: i64(3)},
			{Domain: "stackoverflow.com", VisitsTotalCount: 800000000, Affinity: 0.70, CategoryRank: i64(1)},
		},
		OrganicTraffic: 360000000,
		PaidTraffic:    0,
	}
}

// placeholder is served for domains without a canned record.
func placeholder(domain string) analytics.SiteMetrics {
	return analytics.SiteMetrics{
		Name:                      domain,
		URL:                       similarwebSiteURL + domain + "/",
		CompanyName:               domain,
		AvgVisitDuration:          "0:00",
		TopCountries:              []analytics.TopCountry{},
		TopKeywords:               []analytics.TopKeyword{},
		SocialNetworkDistribution: []analytics.SocialNetworkDistribution{},
		TopSimilarityCompetitors:  []analytics.TopSimilarityCompetitor{},
	}
}

var knownSites = map[string]func() analytics.SiteMetrics{
	"linkedin.com": linkedIn,
	"github.com":   gitHub,
}

// SiteMetrics returns the canned records for every known domain, in a stable order.
func SiteMetrics() []analytics.SiteMetrics {
	return []analytics.SiteMetrics{linkedIn(), gitHub()}
}

// SiteMetricsFor returns one record per distinct requested website, in
// request order: the canned record when one exists, a placeholder otherwise.
func SiteMetricsFor(websites []string) []analytics.SiteMetrics {
	domains := analytics.Domains(websites)
	out := make([]analytics.SiteMetrics, 0, len(domains))
	for _, d := range domains {
		out = append(out, SiteMetricsForDomain(d))
	}
	return out
}

// SiteMetricsForDomain returns the canned record for domain or a placeholder.
func SiteMetricsForDomain(domain string) analytics.SiteMetrics {
	domain = analytics.CleanDomain(domain)
	if fn, ok := knownSites[domain]; ok {
		return fn()
	}
	return placeholder(domain)
}
