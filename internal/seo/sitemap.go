package seo

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// SitemapEntry is one project page.
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Sitemap renders the home page, the project listing and one URL per project.
func Sitemap(baseURL string, entries []SitemapEntry) ([]byte, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	set := urlset{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: baseURL + "/", ChangeFreq: "daily", Priority: "1.0"},
			{Loc: baseURL + "/projects", ChangeFreq: "daily", Priority: "0.8"},
		},
	}
	for _, e := range entries {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        baseURL + "/projects/" + e.Slug,
			LastMod:    e.UpdatedAt.UTC().Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func Robots(baseURL string) string {
	return fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: %s/sitemap.xml\n", strings.TrimRight(baseURL, "/"))
}
