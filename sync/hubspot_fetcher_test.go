package sync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestFetcher(url string) (*HubSpotFetcher, *CredentialContext) {
	var config Config
	config.API.Endpoints.CRM = url
	fetcher := NewHubSpotFetcher(NewSyncContext(config))
	creds := NewCredentialContext(&SyncAccount{HubID: "42", AccessToken: "token"}, nil)
	return fetcher, creds
}

func TestHubSpotFetcher_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/companies/search", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "200", gjson.GetBytes(body, "after").String())
		assert.Equal(t, "hs_lastmodifieddate", gjson.GetBytes(body, "sorts.0.propertyName").String())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total": 3,
			"results": [
				{"id": "1", "createdAt": "2024-01-01T00:00:00.000Z", "updatedAt": "2024-01-02T00:00:00.000Z", "properties": {"domain": "a.com"}},
				{"createdAt": "2024-01-01T00:00:00.000Z"},
				{"id": "3", "createdAt": "not a date", "updatedAt": "2024-01-02T00:00:00.000Z", "properties": {"domain": "c.com"}}
			],
			"paging": {"next": {"after": "300"}}
		}`))
	}))
	defer srv.Close()

	fetcher, creds := newTestFetcher(srv.URL)
	req := BuildSearchRequest(Companies, ModificationWindow{}, PaginationCursor{After: 200}, []string{"domain"}, 0)
	page, err := fetcher.Search(context.Background(), creds, Companies, req)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, "300", page.NextAfter)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "1", page.Results[0].ID)
	assert.Equal(t, testTime("2024-01-02T00:00:00Z"), page.Results[0].UpdatedAt)
	assert.True(t, page.Results[0].HasTimestamps())
	assert.False(t, page.Results[1].HasTimestamps())
}

func TestHubSpotFetcher_SearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"error","message":"rate limited"}`))
	}))
	defer srv.Close()

	fetcher, creds := newTestFetcher(srv.URL)
	_, err := fetcher.Search(context.Background(), creds, Contacts, SearchRequest{})
	assert.Error(t, err)
}

func TestHubSpotFetcher_BatchReadAssociations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/associations/MEETINGS/CONTACTS/batch/read", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"inputs":[{"id":"m1"},{"id":"m2"}]}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "COMPLETE",
			"results": [
				{"from": {"id": "m1"}, "to": [{"id": "c1", "type": "meeting_event_to_contact"}, {"id": "c2", "type": "meeting_event_to_contact"}]}
			]
		}`))
	}))
	defer srv.Close()

	fetcher, creds := newTestFetcher(srv.URL)
	associations, err := fetcher.BatchReadAssociations(context.Background(), creds, Meetings, Contacts, []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Equal(t, []Association{{FromID: "m1", ToIDs: []string{"c1", "c2"}}}, associations)
}

func TestHubSpotFetcher_GetByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/crm/v3/objects/contacts/c1":
			assert.Equal(t, "email", r.URL.Query().Get("properties"))
			_, _ = w.Write([]byte(`{"id":"c1","createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z","properties":{"email":"a@x.com"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","category":"OBJECT_NOT_FOUND"}`))
		}
	}))
	defer srv.Close()

	fetcher, creds := newTestFetcher(srv.URL)
	record, err := fetcher.GetByID(context.Background(), creds, Contacts, "c1", []string{"email"})
	require.NoError(t, err)
	email, _ := record.Properties.StringForPath("email")
	assert.Equal(t, "a@x.com", email)

	_, err = fetcher.GetByID(context.Background(), creds, Contacts, "c2", []string{"email"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
