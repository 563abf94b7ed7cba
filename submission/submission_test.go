package submission

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadPage(t *testing.T) []byte {
	t.Helper()
	page, err := os.ReadFile("testdata/view.html")
	require.NoError(t, err)
	return page
}

// TestScrape_FullPage verifies every field is extracted from a complete page
func TestScrape_FullPage(t *testing.T) {
	rec := Scrape(loadPage(t))

	assert.Equal(t, 12345, rec.ID)
	assert.Equal(t, "Moonlit Howl", rec.Title)
	assert.Equal(t, "Jane", rec.Author, "should skip the account's own profile link")
	assert.True(t, rec.IsSafe)
	assert.True(t, rec.RatingKnown)
	assert.Equal(t, []string{"wolf", "art", "moon", "wolf"}, rec.Tags, "should keep order and duplicates")
	assert.Equal(t, "Beautiful <b>colors</b>!<br/>Love it", rec.LeadingComment)
}

// TestScrape_StopsAtFirstComment verifies nothing after the first comment is
// scraped
func TestScrape_StopsAtFirstComment(t *testing.T) {
	rec := Scrape(loadPage(t))

	assert.NotContains(t, rec.Tags, "after-comments")
}

// TestScrape_UnsafeRating verifies non-general labels mark a record unsafe
func TestScrape_UnsafeRating(t *testing.T) {
	page := []byte(`<img src="/img/labels/adult.gif"><img id="submissionImg" alt="T">`)

	rec := Scrape(page)

	assert.False(t, rec.IsSafe)
	assert.True(t, rec.RatingKnown)
	assert.Equal(t, "T", rec.Title)
}

// TestScrape_NoRating verifies the rating defaults to unsafe and unknown
func TestScrape_NoRating(t *testing.T) {
	rec := Scrape([]byte(`<a href="/user/bob/">Bob</a>`))

	assert.False(t, rec.IsSafe)
	assert.False(t, rec.RatingKnown)
	assert.Equal(t, "nsfw", rec.Rating())
	assert.Equal(t, "Bob", rec.Author)
}

// TestScrape_FirstAuthorWins verifies later profile links are ignored
func TestScrape_FirstAuthorWins(t *testing.T) {
	page := []byte(`<a href="/user/first/">First</a><a href="/user/second/">Second</a>`)

	rec := Scrape(page)

	assert.Equal(t, "First", rec.Author)
}

// TestScrape_FirstFullLinkWins verifies later full-view links don't replace the ID
func TestScrape_FirstFullLinkWins(t *testing.T) {
	page := []byte(`<a href="/full/111/">Full view</a><a href="/full/222/">Related</a>`)

	rec := Scrape(page)

	assert.Equal(t, 111, rec.ID)
}

// TestScrape_EmptyPage verifies an empty page yields a zero record
func TestScrape_EmptyPage(t *testing.T) {
	rec := Scrape(nil)

	assert.Equal(t, Record{}, rec)
}

// TestScrapeCandidate_FallbackID verifies the drafted ID fills a missing ID
func TestScrapeCandidate_FallbackID(t *testing.T) {
	rec := ScrapeCandidate(777, []byte(`<img id="submissionImg" alt="No download link">`))
	assert.Equal(t, 777, rec.ID)

	rec = ScrapeCandidate(777, loadPage(t))
	assert.Equal(t, 12345, rec.ID, "should prefer the ID on the page")
}

// TestRecord_Rating verifies the rating pseudo-tag
func TestRecord_Rating(t *testing.T) {
	assert.Equal(t, "sfw", Record{IsSafe: true}.Rating())
	assert.Equal(t, "nsfw", Record{IsSafe: false}.Rating())
}

// TestLeadingInt verifies numeric prefix parsing
func TestLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"12345/", 12345},
		{"42", 42},
		{"", 0},
		{"abc", 0},
		{"7a8", 7},
		{"99999999999999999999999", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LeadingInt(tt.in))
		})
	}
}
