// Package api implements the client for the VPN service REST API.
// It is the data source behind the periodic refreshers: it fetches server
// list snapshots, client configuration, and handles session authentication.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/servers"
)

// Client talks to the VPN service REST API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
	tier  int
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: common.APITimeout,
		},
	}
}

// SetToken installs the session token attached to authenticated requests.
// An empty token clears the session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently installed session token, or the empty
// string.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HasSession reports whether a session token is installed.
func (c *Client) HasSession() bool {
	return c.Token() != ""
}

// logicalsResponse mirrors the JSON body of the server list endpoint.
type logicalsResponse struct {
	Code            int                     `json:"Code"`
	LogicalServers  []servers.LogicalServer `json:"LogicalServers"`
	UpdateTimestamp int64                   `json:"UpdateTimestamp"`
}

// FetchServerList retrieves the current server list snapshot.
// Transport failures and server errors wrap common.ErrAPIUnreachable;
// undecodable bodies wrap common.ErrMalformedResponse. Both are the
// recoverable fetch-error class: callers report them and keep going.
func (c *Client) FetchServerList(ctx context.Context) (*servers.ServerList, error) {
	var response logicalsResponse
	if err := c.get(ctx, "/vpn/logicals", &response); err != nil {
		return nil, err
	}

	if response.UpdateTimestamp <= 0 {
		return nil, fmt.Errorf("%w: missing update timestamp", common.ErrMalformedResponse)
	}

	return servers.NewServerList(response.LogicalServers, response.UpdateTimestamp), nil
}

// clientConfigResponse mirrors the JSON body of the client config endpoint.
type clientConfigResponse struct {
	Code           int   `json:"Code"`
	UDPPorts       []int `json:"UDPPorts"`
	TCPPorts       []int `json:"TCPPorts"`
	PortForwarding bool  `json:"PortForwarding"`
	// LifetimeSeconds is how long the configuration stays fresh.
	LifetimeSeconds int64 `json:"LifetimeSeconds"`
}

// FetchClientConfig retrieves the VPN client configuration.
func (c *Client) FetchClientConfig(ctx context.Context) (*ClientConfig, error) {
	var response clientConfigResponse
	if err := c.get(ctx, "/vpn/clientconfig", &response); err != nil {
		return nil, err
	}
	return newClientConfig(
		response.UDPPorts, response.TCPPorts,
		response.PortForwarding, response.LifetimeSeconds,
	), nil
}

// authRequest and authResponse mirror the session endpoint bodies.
type authRequest struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

type authResponse struct {
	Code  int    `json:"Code"`
	Token string `json:"Token"`
	// Tier is the account plan: 0 free, higher values are paid plans.
	Tier int `json:"Tier"`
}

// Login authenticates against the API and installs the returned session
// token on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(authRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var response authResponse
	if err := c.do(req, &response); err != nil {
		return err
	}
	if response.Token == "" {
		return fmt.Errorf("%w: empty session token", common.ErrMalformedResponse)
	}

	c.SetToken(response.Token)
	c.mu.Lock()
	c.tier = response.Tier
	c.mu.Unlock()
	return nil
}

// Tier returns the account tier reported by the last successful login:
// 0 for free accounts, higher values for paid plans.
func (c *Client) Tier() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tier
}

// Logout invalidates the current session on the server and clears the
// local token. The token is cleared even if the remote call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")

	req, err := c.newRequest(ctx, http.MethodDelete, "/auth", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", common.GenerateID())

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrAPIUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return common.ErrNotLoggedIn
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", common.ErrAPIUnreachable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return nil
}
