package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"
)

func testTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testRecord(id string, createdAt time.Time, updatedAt time.Time, properties string) Record {
	return Record{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt, Properties: NewSource(properties)}
}

// newTestRetryer returns a retryer that records backoff delays instead of sleeping.
func newTestRetryer(delays *[]time.Duration) *Retryer {
	r := NewRetryer(DefaultRetryConfig())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	}
	return r
}

type fakeRefresher struct {
	mu    gosync.Mutex
	calls int
	token Token
	err   error
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken string) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Token{}, f.err
	}
	return f.token, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCRM serves queued search pages per entity, fixed associations and contacts.
type fakeCRM struct {
	mu gosync.Mutex

	pages      map[EntityType][]SearchPage
	searchErrs map[EntityType]error
	requests   map[EntityType][]SearchRequest

	// callErrs are consumed one per search call; a nil entry serves the next page.
	callErrs map[EntityType][]error

	associations map[string][]Association // keyed by "from/to"
	contacts     map[string]Record
	getCalls     map[string]int
	getErr       error
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		pages:        make(map[EntityType][]SearchPage),
		searchErrs:   make(map[EntityType]error),
		callErrs:     make(map[EntityType][]error),
		requests:     make(map[EntityType][]SearchRequest),
		associations: make(map[string][]Association),
		contacts:     make(map[string]Record),
		getCalls:     make(map[string]int),
	}
}

func (f *fakeCRM) Search(ctx context.Context, creds *CredentialContext, entity EntityType, req SearchRequest) (SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[entity] = append(f.requests[entity], req)
	if err := f.searchErrs[entity]; err != nil {
		return SearchPage{}, err
	}
	if errs := f.callErrs[entity]; len(errs) > 0 {
		f.callErrs[entity] = errs[1:]
		if errs[0] != nil {
			return SearchPage{}, errs[0]
		}
	}
	pages := f.pages[entity]
	if len(pages) == 0 {
		return SearchPage{}, nil
	}
	f.pages[entity] = pages[1:]
	return pages[0], nil
}

func (f *fakeCRM) BatchReadAssociations(ctx context.Context, creds *CredentialContext, from EntityType, to EntityType, ids []string) ([]Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool)
	for _, id := range ids {
		wanted[id] = true
	}
	var result []Association
	for _, a := range f.associations[fmt.Sprintf("%s/%s", from, to)] {
		if wanted[a.FromID] {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeCRM) GetByID(ctx context.Context, creds *CredentialContext, entity EntityType, id string, properties []string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls[id]++
	if f.getErr != nil {
		return Record{}, f.getErr
	}
	r, exists := f.contacts[id]
	if !exists {
		return Record{}, fmt.Errorf("contact %s %w", id, ErrRecordNotFound)
	}
	return r, nil
}

func (f *fakeCRM) Requests(entity EntityType) []SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SearchRequest{}, f.requests[entity]...)
}

func (f *fakeCRM) GetCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[id]
}

type recordingSink struct {
	mu      gosync.Mutex
	batches [][]ActionEvent
	err     error
}

func (s *recordingSink) Send(ctx context.Context, actions []ActionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, actions)
	return s.err
}

func (s *recordingSink) Batches() [][]ActionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]ActionEvent{}, s.batches...)
}

func (s *recordingSink) Actions() []ActionEvent {
	var result []ActionEvent
	for _, b := range s.Batches() {
		result = append(result, b...)
	}
	return result
}

type failingAccountStore struct{}

func (failingAccountStore) Accounts(ctx context.Context) ([]*SyncAccount, error) {
	return nil, errors.New("database unavailable")
}

func (failingAccountStore) SaveAccount(ctx context.Context, account *SyncAccount) error {
	return errors.New("database unavailable")
}

// flakyAccountStore fails the first failures saves and then delegates.
type flakyAccountStore struct {
	*MemoryAccountStore
	mu       gosync.Mutex
	failures int
}

func (s *flakyAccountStore) SaveAccount(ctx context.Context, account *SyncAccount) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("database is locked")
	}
	s.mu.Unlock()
	return s.MemoryAccountStore.SaveAccount(ctx, account)
}
