// Package rules decides whether a submission may be posted, based on block
// and require lists of tags.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/pevans/featherpost/submission"
)

// RuleSet is a set of lower-cased tokens.
type RuleSet map[string]struct{}

// NewRuleSet builds a rule set from tokens. Surrounding whitespace is
// trimmed from each token and matching is case-insensitive.
func NewRuleSet(tokens ...string) RuleSet {
	rs := make(RuleSet, len(tokens))
	for _, tok := range tokens {
		tok = normalize(strings.TrimSpace(tok))
		if tok != "" {
			rs[tok] = struct{}{}
		}
	}
	return rs
}

// Has reports whether the set contains token, ignoring case. The token is
// compared as given, whitespace included.
func (rs RuleSet) Has(token string) bool {
	_, ok := rs[normalize(token)]
	return ok
}

// sortedTokens returns the set's tokens in a stable order.
func sortedTokens(rs RuleSet) []string {
	return slices.Sorted(maps.Keys(rs))
}

// Len returns the number of tokens in the set.
func (rs RuleSet) Len() int {
	return len(rs)
}

// Load reads a rule file: one token per line, with an optional trailing
// comma. A missing file is not an error and yields an empty set.
func Load(path string) (RuleSet, error) {
	if path == "" {
		return RuleSet{}, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return RuleSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", err)
	}
	defer f.Close()

	rs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	return rs, nil
}

// Parse reads rule tokens from r.
func Parse(r io.Reader) (RuleSet, error) {
	var tokens []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimSpace(strings.TrimSuffix(line, ","))
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewRuleSet(tokens...), nil
}

func normalize(token string) string {
	return strings.ToLower(token)
}

// tagSet indexes working tags by their lower-cased form. Tags keep any
// whitespace they were scraped with.
func tagSet(tags []string) RuleSet {
	rs := make(RuleSet, len(tags))
	for _, tag := range tags {
		rs[normalize(tag)] = struct{}{}
	}
	return rs
}

// WorkingTags returns the tags a record is judged by: its rating pseudo-tag
// and author, followed by its scraped tags.
func WorkingTags(rec submission.Record) []string {
	tags := make([]string, 0, len(rec.Tags)+2)
	tags = append(tags, rec.Rating(), rec.Author)
	return append(tags, rec.Tags...)
}

// Reason explains a Decision.
type Reason string

const (
	ReasonAccepted        Reason = "accepted"
	ReasonBlocked         Reason = "blocked"
	ReasonMissingRequired Reason = "missing required"
)

// Decision is the outcome of evaluating a record.
type Decision struct {
	Accepted bool
	Reason   Reason
	// Token is the block token that matched or the require token that
	// didn't.
	Token string
}

func (d Decision) String() string {
	if d.Token == "" {
		return string(d.Reason)
	}
	return fmt.Sprintf("%s: %s", d.Reason, d.Token)
}

// Filter pairs a block list with a require list. An empty list places no
// constraint.
type Filter struct {
	Block   RuleSet
	Require RuleSet
}

// LoadFilter reads both rule files. Either may be missing.
func LoadFilter(blockPath, requirePath string) (*Filter, error) {
	block, err := Load(blockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load block rules: %w", err)
	}

	require, err := Load(requirePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load require rules: %w", err)
	}

	return &Filter{Block: block, Require: require}, nil
}

// Evaluate judges rec. Any block match rejects the record before require
// rules are considered; every require token must then match at least one
// working tag. Matching is whole-token and case-insensitive, with no
// trimming of the scraped tags.
func (f *Filter) Evaluate(rec submission.Record) Decision {
	tags := WorkingTags(rec)

	if f.Block.Len() > 0 {
		for _, tag := range tags {
			if f.Block.Has(tag) {
				return Decision{Reason: ReasonBlocked, Token: normalize(tag)}
			}
		}
	}

	if f.Require.Len() > 0 {
		present := tagSet(tags)
		for _, tok := range sortedTokens(f.Require) {
			if !present.Has(tok) {
				return Decision{Reason: ReasonMissingRequired, Token: tok}
			}
		}
	}

	return Decision{Accepted: true, Reason: ReasonAccepted}
}

// Evaluate reports whether rec passes the given block and require sets.
func Evaluate(rec submission.Record, block, require RuleSet) bool {
	f := Filter{Block: block, Require: require}
	return f.Evaluate(rec).Accepted
}
