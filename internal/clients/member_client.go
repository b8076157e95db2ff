// internal/clients/member_client.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"swimclub/internal/membership"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Minute
)

// MemberClient reads members from a remote member directory over HTTP.
// Lookups by id are cached for a short TTL; listings always hit the remote.
type MemberClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *lru.LRU[uuid.UUID, membership.Member]
}

// Option configures a MemberClient.
type Option func(*MemberClient)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(mc *MemberClient) { mc.httpClient = c }
}

// WithCache sets the lookup cache size and TTL. A size of 0 disables it.
func WithCache(size int, ttl time.Duration) Option {
	return func(mc *MemberClient) {
		if size <= 0 {
			mc.cache = nil
			return
		}
		mc.cache = lru.NewLRU[uuid.UUID, membership.Member](size, nil, ttl)
	}
}

func NewMemberClient(baseURL string, opts ...Option) *MemberClient {
	c := &MemberClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		cache:      lru.NewLRU[uuid.UUID, membership.Member](defaultCacheSize, nil, defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemberClient) FindByID(ctx context.Context, id uuid.UUID) (*membership.Member, error) {
	if c.cache != nil {
		if m, ok := c.cache.Get(id); ok {
			return &m, nil
		}
	}

	var member membership.Member
	if err := c.get(ctx, fmt.Sprintf("/members/%s", id), &member); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(id, member)
	}
	return &member, nil
}

func (c *MemberClient) FindAll(ctx context.Context) ([]membership.Member, error) {
	members := []membership.Member{}
	if err := c.get(ctx, "/members", &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *MemberClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("member directory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, membership.ErrMemberNotFound)
	default:
		return fmt.Errorf("GET %s: unexpected status code: %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode member directory response: %w", err)
	}
	return nil
}
