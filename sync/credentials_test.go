package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialContext_Expired(t *testing.T) {
	account := &SyncAccount{HubID: "42"}
	creds := NewCredentialContext(account, nil)
	now := testTime("2024-01-01T12:00:00Z")
	creds.now = func() time.Time { return now }

	assert.False(t, creds.Expired(), "unknown expiry is not expired")

	account.ExpiresAt = now.Add(time.Minute)
	assert.False(t, creds.Expired())

	account.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, creds.Expired())
}

func TestCredentialContext_Refresh(t *testing.T) {
	expiresAt := testTime("2024-01-01T13:00:00Z")
	account := &SyncAccount{HubID: "42", AccessToken: "old", RefreshToken: "r1"}
	refresher := &fakeRefresher{token: Token{AccessToken: "new", RefreshToken: "r2", ExpiresAt: expiresAt}}
	creds := NewCredentialContext(account, refresher)

	require.NoError(t, creds.Refresh(context.Background()))
	assert.Equal(t, "new", account.AccessToken)
	assert.Equal(t, "r2", account.RefreshToken)
	assert.Equal(t, expiresAt, account.ExpiresAt)
	assert.Equal(t, "new", creds.AccessToken())
}

func TestCredentialContext_RefreshFailureKeepsToken(t *testing.T) {
	account := &SyncAccount{HubID: "42", AccessToken: "old", RefreshToken: "r1"}
	creds := NewCredentialContext(account, &fakeRefresher{err: errors.New("invalid_grant")})

	err := creds.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Equal(t, "old", account.AccessToken)
}

func TestCredentialContext_RefreshWithoutRefreshToken(t *testing.T) {
	refresher := &fakeRefresher{}
	creds := NewCredentialContext(&SyncAccount{HubID: "42"}, refresher)
	assert.Error(t, creds.Refresh(context.Background()))
	assert.Equal(t, 0, refresher.Calls())
}

func TestCredentialContext_RefreshIfExpiredOnce(t *testing.T) {
	now := testTime("2024-01-01T12:00:00Z")
	account := &SyncAccount{HubID: "42", AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.Add(-time.Minute)}
	refresher := &fakeRefresher{token: Token{AccessToken: "new", ExpiresAt: now.Add(time.Hour)}}
	creds := NewCredentialContext(account, refresher)
	creds.now = func() time.Time { return now }

	var wg gosync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, creds.RefreshIfExpired(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, refresher.Calls())
	assert.Equal(t, "new", creds.AccessToken())
	assert.Equal(t, "r1", account.RefreshToken)
	assert.False(t, creds.Expired())
}

func TestCredentialContext_RefreshIfExpiredSkipsValidToken(t *testing.T) {
	now := testTime("2024-01-01T12:00:00Z")
	refresher := &fakeRefresher{}
	creds := NewCredentialContext(&SyncAccount{HubID: "42", RefreshToken: "r1", ExpiresAt: now.Add(time.Minute)}, refresher)
	creds.now = func() time.Time { return now }

	require.NoError(t, creds.RefreshIfExpired(context.Background()))
	assert.Equal(t, 0, refresher.Calls())
}

func TestOAuthTokenRefresher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new","refresh_token":"r2","token_type":"bearer","expires_in":1800}`))
	}))
	defer srv.Close()

	refresher := OAuthTokenRefresher{ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL}
	before := time.Now()
	token, err := refresher.RefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "new", token.AccessToken)
	assert.Equal(t, "r2", token.RefreshToken)
	assert.WithinDuration(t, before.Add(30*time.Minute), token.ExpiresAt, time.Minute)
}

func TestOAuthTokenRefresher_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	_, err := OAuthTokenRefresher{TokenURL: srv.URL}.RefreshToken(context.Background(), "r1")
	assert.Error(t, err)
}
