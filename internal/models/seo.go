package models

import "strings"

// SEO is the page metadata rendered into the document head.
type SEO struct {
	Title         string
	Description   string
	Keywords      string
	OGTitle       string
	OGDescription string
	OGImage       string
	OGURL         string
	TwitterCard   string
	CanonicalURL  string
	Lang          string
}

// DefaultSEO returns the site-wide metadata.
func DefaultSEO() SEO {
	return SEO{
		Title:       "VraagMijnOverheid - Transparantie en vertrouwen tussen burger en overheid",
		Description: "Stel uw vraag aan de overheid op een eenvoudige en respectvolle manier. Wij helpen u vanaf de eerste vraag met het vinden van informatie en het indienen van WOO-verzoeken.",
		Keywords:    "WOO verzoek, Wet Open Overheid, informatieverzoek, overheid, transparantie, burger, overheidsinformatie, open overheid",
		OGImage:     "/static/government-logo.png",
		TwitterCard: "summary",
		Lang:        "nl",
	}
}

// WithTitle returns a copy of s with a page specific title.
func (s SEO) WithTitle(title string) SEO {
	s.Title = title
	return s
}

// Resolve fills the Open Graph fallbacks from the title and description and turns relative image, page
// and canonical URLs into absolute ones on origin.
func (s SEO) Resolve(origin string) SEO {
	if s.OGTitle == "" {
		s.OGTitle = s.Title
	}
	if s.OGDescription == "" {
		s.OGDescription = s.Description
	}
	if s.TwitterCard == "" {
		s.TwitterCard = "summary"
	}
	if s.Lang == "" {
		s.Lang = "nl"
	}
	s.OGImage = absoluteURL(origin, s.OGImage)
	s.OGURL = absoluteURL(origin, s.OGURL)
	s.CanonicalURL = absoluteURL(origin, s.CanonicalURL)
	return s
}

func absoluteURL(origin, u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return strings.TrimSuffix(origin, "/") + u
}
