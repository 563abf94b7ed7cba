package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultPDS = "https://bsky.social"

// errUnauthorized marks a 401 so the session can be refreshed.
var errUnauthorized = errors.New("unauthorized")

// Bluesky posts to a Bluesky account through its PDS. Use an app password,
// not the account password.
type Bluesky struct {
	pds        string
	identifier string
	password   string
	httpClient *http.Client

	// populated after login
	accessJwt string
	did       string
}

// NewBluesky creates a Bluesky publisher. If pds is empty it defaults to
// https://bsky.social.
func NewBluesky(pds, identifier, password string) *Bluesky {
	if pds == "" {
		pds = defaultPDS
	}
	return &Bluesky{
		pds:        strings.TrimRight(pds, "/"),
		identifier: identifier,
		password:   password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name implements Publisher.
func (b *Bluesky) Name() string {
	return "bluesky"
}

// Login creates a session and stores its access token.
func (b *Bluesky) Login(ctx context.Context) error {
	body := map[string]string{
		"identifier": b.identifier,
		"password":   b.password,
	}

	var resp createSessionResponse
	if err := b.post(ctx, "/xrpc/com.atproto.server.createSession", body, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	b.accessJwt = resp.AccessJwt
	b.did = resp.DID
	return nil
}

// DID returns the authenticated account's DID. Only valid after Login.
func (b *Bluesky) DID() string {
	return b.did
}

// Publish implements Publisher. It logs in on first use and again when the
// session has expired.
func (b *Bluesky) Publish(ctx context.Context, text string) error {
	if b.accessJwt == "" {
		if err := b.Login(ctx); err != nil {
			return err
		}
	}

	err := b.createPost(ctx, text)
	if errors.Is(err, errUnauthorized) {
		b.accessJwt = ""
		if err := b.Login(ctx); err != nil {
			return err
		}
		err = b.createPost(ctx, text)
	}
	return err
}

func (b *Bluesky) createPost(ctx context.Context, text string) error {
	record := postRecord{
		Type:      "app.bsky.feed.post",
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Facets:    linkFacets(text),
	}

	body := createRecordRequest{
		Repo:       b.did,
		Collection: "app.bsky.feed.post",
		Record:     record,
	}

	var resp createRecordResponse
	if err := b.post(ctx, "/xrpc/com.atproto.repo.createRecord", body, &resp); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// linkFacets marks every http(s) URL in text as a link. Bluesky doesn't
// autolink plain text, and facet offsets are UTF-8 byte offsets.
func linkFacets(text string) []facet {
	var facets []facet

	offset := 0
	for _, field := range strings.Split(text, " ") {
		start := offset
		offset += len(field) + 1

		if !strings.HasPrefix(field, "https://") && !strings.HasPrefix(field, "http://") {
			continue
		}
		facets = append(facets, facet{
			Index: byteSlice{ByteStart: start, ByteEnd: start + len(field)},
			Features: []facetFeature{{
				Type: "app.bsky.richtext.facet#link",
				URI:  field,
			}},
		})
	}

	return facets
}

func (b *Bluesky) post(ctx context.Context, path string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.pds+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+b.accessJwt)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", errUnauthorized, string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

type createRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type postRecord struct {
	Type      string  `json:"$type"`
	Text      string  `json:"text"`
	CreatedAt string  `json:"createdAt"`
	Facets    []facet `json:"facets,omitempty"`
}

type facet struct {
	Index    byteSlice      `json:"index"`
	Features []facetFeature `json:"features"`
}

type byteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type facetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}
