package selector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pevans/featherpost/ledger"
	"github.com/pevans/featherpost/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLanding    = `<html><body><a href="/user/x/">x</a><a href="/view/100/">newest</a><a href="/view/99/">older</a></body></html>`
	testValidPage  = `<html><head><title>Art by Jane</title></head><body><img id="submissionImg" alt="Art"></body></html>`
	testMissing    = `<html><head><title>System Error</title></head><body>The submission you are trying to find is not in our database.</body></html>`
	testRestricted = `<html><body><p><b> has elected to make their content available to registered users only.</b></p></body></html>`
)

var errNetwork = errors.New("connection reset")

// fakeSite serves pages from memory.
type fakeSite struct {
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages: map[string]string{"https://fa.test/": testLanding},
		errs:  map[string]error{},
	}
}

func (f *fakeSite) LandingURL() string    { return "https://fa.test/" }
func (f *fakeSite) ItemURL(id int) string { return fmt.Sprintf("https://fa.test/view/%d/", id) }

func (f *fakeSite) Fetch(_ context.Context, url string) ([]byte, error) {
	f.fetched = append(f.fetched, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	page, ok := f.pages[url]
	if !ok {
		return []byte(testValidPage), nil
	}
	return []byte(page), nil
}

// scriptedRand returns a fixed sequence of values, repeating the last.
type scriptedRand struct {
	values []int
	calls  int
}

func (r *scriptedRand) IntN(n int) int {
	v := r.values[min(r.calls, len(r.values)-1)]
	r.calls++
	return v % n
}

// seq builds a scriptedRand that drafts the given IDs in order.
func seq(ids ...int) *scriptedRand {
	values := make([]int, len(ids))
	for i, id := range ids {
		values[i] = id - 1
	}
	return &scriptedRand{values: values}
}

// memLedger is an in-memory ledger.
type memLedger struct {
	ids      map[int]bool
	appended []int
	err      error
}

func newMemLedger(ids ...int) *memLedger {
	l := &memLedger{ids: map[int]bool{}}
	for _, id := range ids {
		l.ids[id] = true
	}
	return l
}

func (l *memLedger) Contains(id int) bool { return l.ids[id] }

func (l *memLedger) Append(id int) error {
	if l.err != nil {
		return l.err
	}
	l.ids[id] = true
	l.appended = append(l.appended, id)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy(maxAttempts int) *retry.Policy {
	return &retry.Policy{MaxAttempts: maxAttempts, Sleep: retry.NoSleep}
}

// TestSelect_FirstDraftValid verifies the happy path
func TestSelect_FirstDraftValid(t *testing.T) {
	site := newFakeSite()
	l := newMemLedger()
	s := New(Options{Site: site, Ledger: l, Rand: seq(42), Retry: testPolicy(1), Logger: quietLogger()})

	cand, err := s.Select(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 42, cand.ID)
	assert.Equal(t, testValidPage, string(cand.Page))
	assert.Equal(t, []int{42}, l.appended)
	assert.Equal(t, []string{"https://fa.test/", "https://fa.test/view/42/"}, site.fetched)
}

// TestSelect_SkipsInvalidCandidates verifies not-found and restricted pages
// are ledgered but never selected
func TestSelect_SkipsInvalidCandidates(t *testing.T) {
	site := newFakeSite()
	site.pages[site.ItemURL(5)] = testMissing
	site.pages[site.ItemURL(6)] = testRestricted
	site.errs[site.ItemURL(7)] = errNetwork
	l := newMemLedger()
	s := New(Options{Site: site, Ledger: l, Rand: seq(5, 6, 7, 8), Retry: testPolicy(1), Logger: quietLogger()})

	cand, err := s.Select(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, cand.ID)
	assert.Equal(t, []int{5, 6, 7, 8}, l.appended, "every drafted ID should be ledgered")
}

// TestSelect_LedgerPreventsRepeats verifies IDs already in the ledger are
// never drafted again
func TestSelect_LedgerPreventsRepeats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	require.NoError(t, os.WriteFile(path, []byte("3,\n4,\n9,\n"), 0o600))
	l, err := ledger.Open(path)
	require.NoError(t, err)
	defer l.Close()

	site := newFakeSite()
	s := New(Options{Site: site, Ledger: l, Rand: seq(3, 4, 9, 3, 10), Retry: testPolicy(1), Logger: quietLogger()})

	cand, err := s.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, cand.ID)

	// A second run over the same ledger never drafts 10 again.
	s = New(Options{Site: site, Ledger: l, Rand: seq(10, 3, 4, 9, 10, 11), Retry: testPolicy(1), Logger: quietLogger()})
	cand, err = s.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, cand.ID)

	assert.Equal(t, []string{
		"https://fa.test/", "https://fa.test/view/10/",
		"https://fa.test/", "https://fa.test/view/11/",
	}, site.fetched, "ledgered IDs should never be fetched")
}

// TestSelect_NoLandingAnchor verifies a landing page without submission
// links yields a no-candidate error
func TestSelect_NoLandingAnchor(t *testing.T) {
	site := newFakeSite()
	site.pages[site.LandingURL()] = `<html><body><a href="/user/x/">x</a></body></html>`
	s := New(Options{Site: site, Ledger: newMemLedger(), Rand: seq(1), Retry: testPolicy(3), Logger: quietLogger()})

	cand, err := s.Select(context.Background())

	assert.Nil(t, cand)
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.ErrorIs(t, err, ErrNoLatestID)
	assert.Len(t, site.fetched, 3, "discovery should be retried per the policy")
}

// TestSelect_LandingFetchFails verifies discovery failures are retried
func TestSelect_LandingFetchFails(t *testing.T) {
	site := newFakeSite()
	site.errs[site.LandingURL()] = errNetwork

	attempts := 0
	policy := testPolicy(0)
	policy.OnRetry = func(attempt int, err error) {
		attempts = attempt
		assert.ErrorIs(t, err, errNetwork)
		if attempt == 2 {
			delete(site.errs, site.LandingURL())
		}
	}
	s := New(Options{Site: site, Ledger: newMemLedger(), Rand: seq(20), Retry: policy, Logger: quietLogger()})

	cand, err := s.Select(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, cand.ID)
	assert.Equal(t, 2, attempts)
}

// TestSelect_Saturated verifies collision runs restart discovery
func TestSelect_Saturated(t *testing.T) {
	site := newFakeSite()
	l := newMemLedger(1, 2, 3)
	s := New(Options{
		Site:          site,
		Ledger:        l,
		Rand:          seq(1, 2, 3, 1, 2, 3),
		MaxCollisions: 3,
		Retry:         testPolicy(2),
		Logger:        quietLogger(),
	})

	_, err := s.Select(context.Background())

	assert.ErrorIs(t, err, ErrLedgerSaturated)
	assert.Equal(t, []string{"https://fa.test/", "https://fa.test/"}, site.fetched)
}

// TestSelect_RepeatedFetchFailures verifies a dead site backs off instead of
// burning through IDs
func TestSelect_RepeatedFetchFailures(t *testing.T) {
	site := newFakeSite()
	for id := 1; id <= 100; id++ {
		site.errs[site.ItemURL(id)] = errNetwork
	}
	l := newMemLedger()
	s := New(Options{
		Site:             site,
		Ledger:           l,
		Rand:             seq(1, 2, 3, 4, 5, 6),
		MaxFetchFailures: 3,
		Retry:            testPolicy(1),
		Logger:           quietLogger(),
	})

	_, err := s.Select(context.Background())

	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, []int{1, 2, 3}, l.appended)
}

// TestSelect_ContextCancelled verifies cancellation stops selection
func TestSelect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{Site: newFakeSite(), Ledger: newMemLedger(), Rand: seq(1), Logger: quietLogger()})

	_, err := s.Select(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestDraft_LedgerError verifies ledger write failures surface
func TestDraft_LedgerError(t *testing.T) {
	l := newMemLedger()
	l.err = errors.New("disk full")
	s := New(Options{Site: newFakeSite(), Ledger: l, Rand: seq(1), Logger: quietLogger()})

	_, err := s.Draft(10)
	assert.ErrorContains(t, err, "disk full")
}

// TestDraft_InvalidMax verifies a max ID below 1 is rejected
func TestDraft_InvalidMax(t *testing.T) {
	s := New(Options{Site: newFakeSite(), Ledger: newMemLedger(), Rand: seq(1), Logger: quietLogger()})

	_, err := s.Draft(0)
	assert.ErrorIs(t, err, ErrNoLatestID)
}

// TestDraft_Range verifies drafts fall in [1, maxID]
func TestDraft_Range(t *testing.T) {
	l := newMemLedger()
	s := New(Options{Site: newFakeSite(), Ledger: l, Logger: quietLogger()})

	for range 50 {
		id, err := s.Draft(1000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, 1000)
	}
	assert.Len(t, l.appended, 50, "drafts should be distinct")
}

// TestValidate verifies page validation
func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte(testValidPage)))
	assert.NoError(t, Validate(nil))
	assert.ErrorIs(t, Validate([]byte(testMissing)), ErrNotFound)
	assert.ErrorIs(t, Validate([]byte(testMissing)), ErrInvalidCandidate)
	assert.ErrorIs(t, Validate([]byte(testRestricted)), ErrRestricted)
	assert.ErrorIs(t, Validate([]byte(testRestricted)), ErrInvalidCandidate)
	assert.NoError(t, Validate([]byte(`<b>System Error</b><title>Something else</title>`)))
}
