package sift

import (
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CredibilityRules scores source domains when the model either hasn't run
// yet (dispatcher seeding) or returns unusable credibility output (pass-2
// fallback). Rules can be loaded from YAML; the built-in defaults cover the
// common cases.
type CredibilityRules struct {
	TLDPatterns []struct {
		Suffix string  `yaml:"suffix"`
		Score  float64 `yaml:"score"`
	} `yaml:"tld_patterns"`
	DomainGroups []struct {
		Category string   `yaml:"category"`
		Score    float64  `yaml:"score"`
		Domains  []string `yaml:"domains"`
	} `yaml:"domain_groups"`
	DefaultScore float64 `yaml:"default_score"`
}

// DefaultCredibilityRules returns the built-in scoring rules.
func DefaultCredibilityRules() *CredibilityRules {
	r := &CredibilityRules{DefaultScore: 0.5}
	r.TLDPatterns = []struct {
		Suffix string  `yaml:"suffix"`
		Score  float64 `yaml:"score"`
	}{
		{Suffix: ".gov", Score: 0.9},
		{Suffix: ".edu", Score: 0.85},
		{Suffix: ".org", Score: 0.65},
	}
	r.DomainGroups = []struct {
		Category string   `yaml:"category"`
		Score    float64  `yaml:"score"`
		Domains  []string `yaml:"domains"`
	}{
		{Category: "reference", Score: 0.8, Domains: []string{"wikipedia.org", "britannica.com", "arxiv.org", "nature.com"}},
		{Category: "news", Score: 0.7, Domains: []string{"reuters.com", "apnews.com", "bbc.com", "bbc.co.uk", "nytimes.com", "theguardian.com"}},
		{Category: "docs", Score: 0.75, Domains: []string{"developer.mozilla.org", "docs.python.org", "go.dev", "github.com", "stackoverflow.com"}},
		{Category: "social", Score: 0.3, Domains: []string{"reddit.com", "twitter.com", "x.com", "facebook.com", "quora.com", "medium.com"}},
	}
	return r
}

// LoadCredibilityRules reads rules from a YAML file. A missing DefaultScore
// falls back to 0.5.
func LoadCredibilityRules(path string) (*CredibilityRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules CredibilityRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	if rules.DefaultScore == 0 {
		rules.DefaultScore = 0.5
	}
	return &rules, nil
}

// Score returns a credibility score in [0,1] for a result URL.
func (r *CredibilityRules) Score(rawURL string) float64 {
	domain := domainOf(rawURL)
	if domain == "" {
		return r.DefaultScore
	}
	for _, g := range r.DomainGroups {
		for _, d := range g.Domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return g.Score
			}
		}
	}
	for _, p := range r.TLDPatterns {
		if strings.HasSuffix(domain, p.Suffix) {
			return p.Score
		}
	}
	return r.DefaultScore
}

// SourceType classifies a result URL into a coarse bucket for the
// source-diversity metrics.
func (r *CredibilityRules) SourceType(rawURL string) string {
	domain := domainOf(rawURL)
	if domain == "" {
		return "unknown"
	}
	for _, g := range r.DomainGroups {
		for _, d := range g.Domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return g.Category
			}
		}
	}
	switch {
	case strings.HasSuffix(domain, ".gov"):
		return "government"
	case strings.HasSuffix(domain, ".edu"):
		return "academic"
	case strings.HasSuffix(domain, ".org"):
		return "organization"
	default:
		return "web"
	}
}

// domainOf extracts the registrable-ish host from a URL, dropping any
// leading "www.".
func domainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}
