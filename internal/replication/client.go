package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
)

const xsrfHeader = "X-XSRF-TOKEN"

// MachineLister lists the machines replicated under one replication item.
type MachineLister interface {
	FindMachines(ctx context.Context, itemID string) ([]Machine, error)
}

// Client is a session-authenticated client for the replication service API.
// Session-scoped calls go through a re-authentication policy that retries
// exactly once after re-establishing the session.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *logger.Logger

	mu    sync.Mutex
	token string

	reauth *ReauthPolicy
}

// NewClient creates a replication service client. No session is established
// until the first call.
func NewClient(baseURL, username, password string, log *logger.Logger) *Client {
	c := &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{},
		logger:   log,
	}
	c.reauth = NewReauthPolicy(c.login)
	return c
}

// login establishes a fresh session and stores its token.
func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return errdefs.Transport("replication login", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/latest/login", bytes.NewReader(body))
	if err != nil {
		return errdefs.Transport("replication login", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errdefs.Transport("replication login", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errdefs.ExternalCall("replication login", fmt.Sprintf("status %d", resp.StatusCode))
	}

	token := ""
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "XSRF-TOKEN" {
			token = cookie.Value
		}
	}
	if token == "" {
		return errdefs.ExternalCall("replication login", "no session token in response")
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.logger.Debugf("Replication session established for %s", c.username)
	return nil
}

// FindMachines returns all machines replicated under the given item.
func (c *Client) FindMachines(ctx context.Context, itemID string) ([]Machine, error) {
	var machines struct {
		Items []Machine `json:"items"`
	}
	path := fmt.Sprintf("/api/latest/projects/%s/machines", itemID)
	if err := c.reauth.Do(ctx, func() error {
		return c.get(ctx, path, &machines)
	}); err != nil {
		return nil, err
	}
	return machines.Items, nil
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return errSessionExpired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errdefs.Transport("replication api", err)
	}
	req.Header.Set(xsrfHeader, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errdefs.Transport("replication api", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errSessionExpired
	case resp.StatusCode != http.StatusOK:
		return errdefs.ExternalCall("replication api", fmt.Sprintf("%s returned status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errdefs.ExternalCall("replication api", fmt.Sprintf("unable to parse %s response: %v", path, err))
	}
	return nil
}
