package auth0

import (
	"context"
	"sync"
)

// FakeClient is an in-memory Client for tests, keyed by access token.
type FakeClient struct {
	mu    sync.RWMutex
	users map[string]*UserInfo
}

func NewFakeClient() *FakeClient {
	return &FakeClient{users: make(map[string]*UserInfo)}
}

func (c *FakeClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, ok := c.users[accessToken]
	if !ok {
		return nil, ErrUserInfoFailed
	}
	return user, nil
}

func (c *FakeClient) AddUser(accessToken string, info *UserInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[accessToken] = info
}
