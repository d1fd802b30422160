package analytics

import (
	"strings"
)

const websitePathMarker = "/website/"

// CleanDomain reduces a user-supplied website to a bare lowercase host:
// scheme, leading "www.", port, path, query and fragment are removed.
func CleanDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 && !strings.Contains(d, "]") {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}

// Domain resolves the analysed host for a record. Names that already look
// like hosts win, then the similarweb-style ".../website/<domain>/" url, and
// finally the lowercased name with ".com" appended.
func (m SiteMetrics) Domain() string {
	name := strings.TrimSpace(m.Name)
	if strings.Contains(name, ".") {
		return CleanDomain(name)
	}
	if i := strings.Index(m.URL, websitePathMarker); i >= 0 {
		rest := m.URL[i+len(websitePathMarker):]
		if d := CleanDomain(rest); d != "" {
			return d
		}
	}
	if name == "" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".com"
}

// Domains returns the cleaned, de-duplicated hosts for the requested websites
// in request order. Blank entries are skipped.
func Domains(websites []string) []string {
	seen := make(map[string]struct{}, len(websites))
	out := make([]string, 0, len(websites))
	for _, w := range websites {
		d := CleanDomain(w)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
