// Package status renders submission records as short posts that fit a
// 140-character budget once the link is shortened.
package status

import (
	"fmt"

	"github.com/pevans/featherpost/submission"
)

const (
	// LinkBudget is what's left of 140 characters after the platform
	// replaces the URL with a 23 character short link.
	LinkBudget = 117

	// MaxAuthorLen is the longest author name shown in full. Longer names
	// are cut to TruncatedAuthorLen characters plus an ellipsis.
	MaxAuthorLen       = 20
	TruncatedAuthorLen = 17

	ViewURLPrefix = "https://furaffinity.net/view/"

	ellipsis = "..."
	byText   = " by "
)

// Tag returns the bracketed rating suffix.
func Tag(rec submission.Record) string {
	if rec.IsSafe {
		return "[SFW]"
	}
	return "[NSFW]"
}

// URL returns the canonical link to the record's submission.
func URL(rec submission.Record) string {
	return fmt.Sprintf("%s%d", ViewURLPrefix, rec.ID)
}

// Author returns the author name as it appears in a status.
func Author(rec submission.Record) string {
	name := []rune(rec.Author)
	if len(name) <= MaxAuthorLen {
		return rec.Author
	}
	return string(name[:TruncatedAuthorLen]) + ellipsis
}

// Budget returns the number of title characters that fit in a status for
// rec.
func Budget(rec submission.Record) int {
	// The rating tag costs its length plus a leading space.
	budget := LinkBudget - (len(Tag(rec)) + 1)
	budget -= len(byText) + len([]rune(Author(rec)))
	return budget
}

// Format renders rec as "<title> by <author> [SFW|NSFW] <url>". Titles that
// don't fit the budget are cut to exactly the budget and followed by an
// ellipsis. Lengths are counted in characters, not bytes.
func Format(rec submission.Record) string {
	title := []rune(rec.Title)
	budget := max(Budget(rec), 0)

	text := rec.Title
	if len(title) >= budget {
		text = string(title[:budget]) + ellipsis
	}

	return fmt.Sprintf("%s%s%s %s %s", text, byText, Author(rec), Tag(rec), URL(rec))
}
