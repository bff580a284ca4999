package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the system of record: a request/response JSON API
// authenticated with a fixed relay credential pair over HTTP basic auth.
// Calls are synchronous and side-effect-free on failure.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewClient creates a gateway client for the persistence API.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// envelope is the API's uniform response wrapper. On errors the data
// field carries the message text.
type envelope struct {
	Status    string          `json:"status"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type credentialRequest struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	APIKey string `json:"apikey"`
}

type createRequest struct {
	Type string `json:"type"`
	AuctionRecord
}

type updateRequest struct {
	Type string `json:"type"`
	AuctionPatch
}

type queryRequest struct {
	Type   string `json:"type"`
	Search any    `json:"search"`
}

// Login verifies a user's credentials and returns the API token the
// system of record holds for them.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, status, err := c.call(ctx, http.MethodPost, credentialRequest{Type: "Login", Username: username, Password: password})
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized {
		return "", ErrBadCredentials
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: %s", ErrUpstream, errText(body))
	}
	var tok tokenResponse
	if err := json.Unmarshal(body.Data, &tok); err != nil {
		return "", fmt.Errorf("%w: decode login response: %v", ErrUpstream, err)
	}
	return tok.APIKey, nil
}

// Register creates a new user and returns their freshly issued token.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	body, status, err := c.call(ctx, http.MethodPost, credentialRequest{Type: "Register", Username: username, Password: password})
	if err != nil {
		return "", err
	}
	if status == http.StatusBadRequest {
		return "", ErrUsernameTaken
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: %s", ErrUpstream, errText(body))
	}
	var tok tokenResponse
	if err := json.Unmarshal(body.Data, &tok); err != nil {
		return "", fmt.Errorf("%w: decode register response: %v", ErrUpstream, err)
	}
	return tok.APIKey, nil
}

// CreateAuction durably stores a new auction record.
func (c *Client) CreateAuction(ctx context.Context, rec AuctionRecord) error {
	body, status, err := c.call(ctx, http.MethodPost, createRequest{Type: "CreateAuction", AuctionRecord: rec})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: %s", ErrUpstream, errText(body))
	}
	return nil
}

// UpdateAuction replicates the mutable auction fields (state, highest
// bid, buyer) to the system of record.
func (c *Client) UpdateAuction(ctx context.Context, patch AuctionPatch) error {
	body, status, err := c.call(ctx, http.MethodPatch, updateRequest{Type: "UpdateAuction", AuctionPatch: patch})
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return ErrAuctionNotFound
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: %s", ErrUpstream, errText(body))
	}
	return nil
}

// QueryAuctions fetches auction records matching the query; the zero
// query is sent as the wildcard and returns every auction.
func (c *Client) QueryAuctions(ctx context.Context, q Query) ([]AuctionRecord, error) {
	var search any = "*"
	if !q.All() {
		search = q
	}
	body, status, err := c.call(ctx, http.MethodPost, queryRequest{Type: "GetAuction", Search: search})
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, errText(body))
	}
	var records []AuctionRecord
	if err := json.Unmarshal(body.Data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode auction list: %v", ErrUpstream, err)
	}
	return records, nil
}

// call issues one authenticated request and decodes the response
// envelope regardless of status, so error messages survive the trip.
func (c *Client) call(ctx context.Context, method string, payload any) (*envelope, int, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: encode request: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Debug().Int("status", resp.StatusCode).Msg("non-envelope upstream response")
			env = envelope{Status: "error", Data: json.RawMessage(fmt.Sprintf("%q", string(raw)))}
		}
	}
	return &env, resp.StatusCode, nil
}

// errText extracts the error message from an envelope's data field.
func errText(env *envelope) string {
	if env == nil || len(env.Data) == 0 {
		return "no detail"
	}
	var msg string
	if err := json.Unmarshal(env.Data, &msg); err == nil {
		return msg
	}
	return string(env.Data)
}
