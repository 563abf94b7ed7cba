// Package submission extracts submission metadata from Fur Affinity item
// pages.
package submission

import (
	"strconv"
	"strings"

	"github.com/pevans/featherpost/markup"
)

// Page shape of a submission. These follow the site's classic theme.
const (
	UserPathPrefix     = "/user/"
	FullPathPrefix     = "/full/"
	LabelPathPrefix    = "/img/labels/"
	GeneralLabelPath   = "/img/labels/general.gif"
	SubmissionImageID  = "submissionImg"
	KeywordsID         = "keywords"
	CommentClassPrefix = "replyto-message"
)

// Record holds what we know about a single submission.
type Record struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`

	// IsSafe is true for general-rated submissions. When no rating label was
	// found RatingKnown is false and IsSafe defaults to false, so unrated
	// items are treated as not safe.
	IsSafe      bool `json:"is_safe"`
	RatingKnown bool `json:"rating_known"`

	// Tags in document order; duplicates are kept.
	Tags []string `json:"tags"`

	// LeadingComment is the raw inner markup of the first comment.
	LeadingComment string `json:"leading_comment,omitempty"`
}

// Rating returns the pseudo-tag for the record's content rating.
func (r Record) Rating() string {
	if r.IsSafe {
		return "sfw"
	}
	return "nsfw"
}

// Scrape walks a submission page once and fills in a Record. Fields the page
// doesn't expose keep their zero values.
func Scrape(page []byte) Record {
	var rec Record
	authorFound := false
	idFound := false

	tree := markup.Parse(page)
	for _, n := range tree.Nodes() {
		switch n.Tag {
		case "a":
			href, ok := n.Attr("href")
			if !ok {
				continue
			}
			// The logged-in account's own profile link carries an id
			// attribute; the submitter's link does not.
			if strings.HasPrefix(href, UserPathPrefix) && !n.HasAttr("id") && !authorFound {
				rec.Author = tree.Text(n)
				authorFound = true
			} else if strings.HasPrefix(href, FullPathPrefix) && !idFound {
				rec.ID = LeadingInt(strings.TrimPrefix(href, FullPathPrefix))
				idFound = true
			}

		case "img":
			if id, _ := n.Attr("id"); id == SubmissionImageID {
				rec.Title, _ = n.Attr("alt")
			} else if src, ok := n.Attr("src"); ok && strings.HasPrefix(src, LabelPathPrefix) {
				rec.IsSafe = src == GeneralLabelPath
				rec.RatingKnown = true
			}

		case "div":
			if id, _ := n.Attr("id"); id == KeywordsID {
				rec.Tags = append(rec.Tags, scrapeTags(tree.Text(n))...)
			}

		case "td":
			if n.AttrHasPrefix("class", CommentClassPrefix) {
				rec.LeadingComment = tree.Text(n)
				// Comments follow everything else on the page.
				return rec
			}
		}
	}

	return rec
}

// ScrapeCandidate scrapes a page fetched for a drafted ID. When the page has
// no full-size link the drafted ID is used.
func ScrapeCandidate(id int, page []byte) Record {
	rec := Scrape(page)
	if rec.ID == 0 {
		rec.ID = id
	}
	return rec
}

// scrapeTags re-parses the keyword container and collects the text of each
// keyword link.
func scrapeTags(keywordsHTML string) []string {
	inner := markup.Parse([]byte(keywordsHTML))

	var tags []string
	for _, n := range inner.Nodes() {
		if n.Is("a") {
			tags = append(tags, inner.Text(n))
		}
	}
	return tags
}

// LeadingInt parses the run of decimal digits at the start of s, so
// "12345/" yields 12345. It returns 0 if s doesn't start with a digit or the
// number overflows.
func LeadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
