package mockdata

import (
	"github.com/JakeFAU/siteintel/internal/analytics"
)

var techTable = map[string][]analytics.Technology{
	"linkedin.com": {
		{Name: "Ember.js", Tag: "javascript"},
		{Name: "Play Framework", Tag: "framework"},
		{Name: "Akamai", Tag: "cdn"},
		{Name: "Google Analytics", Tag: "analytics"},
		{Name: "LinkedIn Insight Tag", Tag: "analytics"},
	},
	"github.com": {
		{Name: "Ruby on Rails", Tag: "framework"},
		{Name: "React", Tag: "javascript"},
		{Name: "Fastly", Tag: "cdn"},
		{Name: "MySQL", Tag: "database"},
		{Name: "Octolytics", Tag: "analytics"},
	},
	"google.com": {
		{Name: "Google Frontend", Tag: "web-server"},
		{Name: "Closure Library", Tag: "javascript"},
		{Name: "Google Cloud CDN", Tag: "cdn"},
		{Name: "HTTP/3", Tag: "protocol"},
	},
	"medium.com": {
		{Name: "Node.js", Tag: "framework"},
		{Name: "React", Tag: "javascript"},
		{Name: "Cloudflare", Tag: "cdn"},
		{Name: "Google Analytics", Tag: "analytics"},
	},
}

var genericTech = []analytics.Technology{
	{Name: "HTML5", Tag: "docinfo"},
	{Name: "jQuery", Tag: "javascript"},
	{Name: "Google Analytics", Tag: "analytics"},
	{Name: "SSL by Default", Tag: "ssl"},
}

// TechProfile returns the canned technology profile for domain, or a generic
// one for unknown domains. The returned slice is a copy.
func TechProfile(domain string) analytics.TechProfile {
	domain = analytics.CleanDomain(domain)
	techs, ok := techTable[domain]
	if !ok {
		techs = genericTech
	}
	return analytics.TechProfile{
		Domain:       domain,
		Technologies: append([]analytics.Technology(nil), techs...),
	}
}
