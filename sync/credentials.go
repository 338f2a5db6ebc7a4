package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"golang.org/x/oauth2"
)

const DefaultTokenURL = "https://api.hubapi.com/oauth/v1/token"

// Token is the result of a token refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (Token, error)
}

// CredentialContext holds the credentials of one account for the duration of a run.
// Refreshes update the account in place and are serialized.
type CredentialContext struct {
	mu        gosync.Mutex
	account   *SyncAccount
	refresher TokenRefresher
	now       func() time.Time
}

func NewCredentialContext(account *SyncAccount, refresher TokenRefresher) *CredentialContext {
	return &CredentialContext{
		account:   account,
		refresher: refresher,
		now:       time.Now,
	}
}

func (c *CredentialContext) HubID() string {
	return c.account.HubID
}

func (c *CredentialContext) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account.AccessToken
}

// Expired reports whether the access token is past its expiry. An unknown expiry is never expired.
func (c *CredentialContext) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired()
}

func (c *CredentialContext) expired() bool {
	if c.account.ExpiresAt.IsZero() {
		return false
	}
	return c.now().After(c.account.ExpiresAt)
}

// Refresh obtains a new access token and stores it on the account.
func (c *CredentialContext) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh(ctx)
}

// RefreshIfExpired refreshes the access token only if it is still expired once
// the lock is held, so callers racing on the same expired token refresh it once.
func (c *CredentialContext) RefreshIfExpired(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.expired() {
		return nil
	}
	return c.refresh(ctx)
}

func (c *CredentialContext) refresh(ctx context.Context) error {
	if c.refresher == nil {
		return errors.New("no token refresher configured")
	}
	if c.account.RefreshToken == "" {
		return fmt.Errorf("account %s has no refresh token", c.account.HubID)
	}
	token, err := c.refresher.RefreshToken(ctx, c.account.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh access token for account %s %w", c.account.HubID, err)
	}
	c.account.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.account.RefreshToken = token.RefreshToken
	}
	c.account.ExpiresAt = token.ExpiresAt
	return nil
}

// OAuthTokenRefresher refreshes tokens against the CRM OAuth endpoint.
type OAuthTokenRefresher struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client
}

func (r OAuthTokenRefresher) oauthConfig() *oauth2.Config {
	tokenURL := r.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (r OAuthTokenRefresher) RefreshToken(ctx context.Context, refreshToken string) (Token, error) {
	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: HTTPRequestTimeout}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	t, err := r.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}, nil
}
