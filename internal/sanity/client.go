package sanity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	logger = log.With().Str("component", "sanity").Logger()
)

const apiVersion = "2021-08-31"

// CommunityMember is the document mirrored into the store for each signup
// email. The id is derived from the email so repeated signups are idempotent.
type CommunityMember struct {
	ID           string `json:"_id"`
	Type         string `json:"_type"`
	Email        string `json:"email"`
	InviteLink   string `json:"inviteLink"`
	LinkRedeemed bool   `json:"linkredeemed"`
}

// NewCommunityMember builds the initial document for an email: no invite
// link yet, link not redeemed.
func NewCommunityMember(email string) CommunityMember {
	return CommunityMember{
		ID:    DocumentID(email),
		Type:  "communityMembers",
		Email: email,
	}
}

// DocumentID encodes an email into a deterministic, URL-safe document id:
// unpadded base64 with '/' and '+' replaced by '_' and '-'.
func DocumentID(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(email))
}

// Client talks to the Sanity HTTP mutation API. It always hits the live API,
// never the CDN, so reads and writes see fresh data.
type Client struct {
	httpClient *http.Client
	baseURL    string
	dataset    string
	token      string
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

func New(projectID, dataset, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    fmt.Sprintf("https://%s.api.sanity.io/v%s", projectID, apiVersion),
		dataset:    dataset,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type mutation struct {
	CreateIfNotExists *CommunityMember `json:"createIfNotExists,omitempty"`
}

type mutateRequest struct {
	Mutations []mutation `json:"mutations"`
}

// CreateIfNotExists submits the document as a createIfNotExists mutation:
// a no-op on the store side when a document with the same id already exists.
func (c *Client) CreateIfNotExists(doc CommunityMember) error {
	body, err := json.Marshal(mutateRequest{
		Mutations: []mutation{{CreateIfNotExists: &doc}},
	})
	if err != nil {
		return fmt.Errorf("encode mutation: %w", err)
	}

	url := fmt.Sprintf("%s/data/mutate/%s", c.baseURL, c.dataset)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mutate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mutate request: status %d: %s", resp.StatusCode, msg)
	}

	logger.Info().Str("id", doc.ID).Msg("Community member document ensured")
	return nil
}
