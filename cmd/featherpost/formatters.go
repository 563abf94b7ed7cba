package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pevans/featherpost/history"
	"github.com/pevans/featherpost/markup"
)

// printHistoryTable prints posts in human-readable table format
func printHistoryTable(posts []history.Post, total int) {
	if len(posts) == 0 {
		fmt.Println("No posts published yet.")
		return
	}

	fmt.Printf("Showing %d of %d posts\n\n", len(posts), total)

	for _, post := range posts {
		title := post.Title
		if len([]rune(title)) > 70 {
			title = string([]rune(title)[:67]) + "..."
		}

		fmt.Printf("%s by %s [%s]\n", title, post.Author, strings.ToUpper(post.Rating))
		fmt.Printf("   Submission: %d | Published: %s | To: %s\n",
			post.SubmissionID,
			post.PublishedAt.Local().Format("2006-01-02 15:04"),
			post.Destination,
		)
		fmt.Printf("   Status: %s\n", post.Status)
		fmt.Printf("   ID: %s\n", post.PostID.String())
		fmt.Println()
	}
}

// printHistoryCompact prints one line per post
func printHistoryCompact(posts []history.Post) {
	if len(posts) == 0 {
		fmt.Println("No posts published yet.")
		return
	}

	for _, post := range posts {
		fmt.Printf("%s  %-9d %s\n",
			post.PublishedAt.Local().Format("2006-01-02 15:04"),
			post.SubmissionID,
			post.Status,
		)
	}
}

// printPreview prints a preview in human-readable format
func printPreview(p preview) {
	rating := p.Record.Rating()
	if !p.Record.RatingKnown {
		rating += " (no rating label)"
	}

	fmt.Printf("Submission: %d\n", p.Record.ID)
	fmt.Printf("Title:      %s\n", p.Record.Title)
	fmt.Printf("Author:     %s\n", p.Record.Author)
	fmt.Printf("Rating:     %s\n", rating)
	fmt.Printf("Tags:       %s\n", strings.Join(p.Record.Tags, ", "))
	if p.Record.LeadingComment != "" {
		fmt.Printf("Comment:    %s\n", markup.PlainText(p.Record.LeadingComment))
	}
	fmt.Printf("Decision:   %s\n", p.Decision)
	if p.Published {
		fmt.Println("Note:       already published")
	}
	fmt.Println()
	fmt.Println(p.Status)
	fmt.Printf("(%d characters)\n", len([]rune(p.Status)))
}

// printJSON prints v as indented JSON
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
