package selector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/featherpost/markup"
	"github.com/pevans/featherpost/submission"
)

// ViewPathPrefix prefixes the path of every submission page.
const ViewPathPrefix = "/view/"

// ErrNoLatestID means the newest submission ID could not be found.
var ErrNoLatestID = errors.New("no submission link found")

// Discoverer finds the newest valid submission ID.
type Discoverer interface {
	Latest(ctx context.Context) (int, error)
}

// LandingPage discovers the newest ID from the site's front page.
type LandingPage struct {
	Site Site
}

// Latest fetches the front page and reads the first submission link.
func (d LandingPage) Latest(ctx context.Context) (int, error) {
	page, err := d.Site.Fetch(ctx, d.Site.LandingURL())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch landing page: %w", err)
	}
	return LatestFromPage(page)
}

// LatestFromPage returns the ID of the first submission link in document
// order. The front page lists newest first, so that is the current maximum.
func LatestFromPage(page []byte) (int, error) {
	tree := markup.Parse(page)
	link := tree.First(func(n *markup.Node) bool {
		if !n.Is("a") {
			return false
		}
		href, _ := n.Attr("href")
		_, ok := viewID(href)
		return ok
	})
	if link == nil {
		return 0, ErrNoLatestID
	}

	href, _ := link.Attr("href")
	id, _ := viewID(href)
	if id < 1 {
		return 0, fmt.Errorf("%w: invalid ID in %q", ErrNoLatestID, href)
	}
	return id, nil
}

// Feed discovers the newest ID from an RSS or Atom feed whose items link to
// submission pages. The feed is fetched through the site client so it
// shares the session.
type Feed struct {
	Fetcher Fetcher
	URL     string
}

// Latest fetches and parses the feed.
func (d Feed) Latest(ctx context.Context) (int, error) {
	data, err := d.Fetcher.Fetch(ctx, d.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feed: %w", err)
	}
	return LatestFromFeed(data)
}

// LatestFromFeed returns the largest submission ID linked from the feed's
// items.
func LatestFromFeed(data []byte) (int, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to parse feed: %w", err)
	}

	latest := 0
	for _, item := range feed.Items {
		links := append([]string{item.Link}, item.Links...)
		for _, link := range links {
			if id, ok := viewID(link); ok && id > latest {
				latest = id
			}
		}
	}

	if latest < 1 {
		return 0, ErrNoLatestID
	}
	return latest, nil
}

// viewID extracts the ID from a submission link, relative or absolute. The
// boolean reports whether href is a submission link at all.
func viewID(href string) (int, bool) {
	if href == "" {
		return 0, false
	}

	path := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		path = u.Path
	}

	if !strings.HasPrefix(path, ViewPathPrefix) {
		return 0, false
	}
	return submission.LeadingInt(strings.TrimPrefix(path, ViewPathPrefix)), true
}
