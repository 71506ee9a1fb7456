// Package auth0 talks to the Auth0 tenant for the bits the JWT does not
// carry, currently the /userinfo profile used to fill in rider accounts.
package auth0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrUserInfoFailed = errors.New("failed to fetch user info")

// UserInfo is the subset of Auth0's /userinfo response the system keeps.
type UserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Nickname      string `json:"nickname"`
	Picture       string `json:"picture"`
}

// Client fetches rider profile data from the tenant.
type Client interface {
	GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
}

// HTTPClient is the real tenant-backed Client.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClient(domain string) *HTTPClient {
	return &HTTPClient{
		endpoint: fmt.Sprintf("https://%s/userinfo", domain),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUserInfoFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: call tenant: %v", ErrUserInfoFailed, err)
	}
	defer resp.Body.Close()

	// Auth0 error bodies are short; keep a snippet for the log line.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUserInfoFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUserInfoFailed, resp.StatusCode, body)
	}

	ui := &UserInfo{}
	if err := json.Unmarshal(body, ui); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUserInfoFailed, err)
	}
	return ui, nil
}
