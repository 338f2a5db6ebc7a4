package sync

import (
	"context"
	"errors"
	"sort"
	gosync "sync"
	"time"
)

// SyncAccount is a connected CRM portal and its sync progress.
type SyncAccount struct {
	HubID        string
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the access token expiry. Zero means unknown.
	ExpiresAt time.Time
	// LastPulledDates holds the watermark per entity type. A missing entry
	// means the entity has never been pulled.
	LastPulledDates map[EntityType]time.Time
}

// LastPulledDate returns the watermark for entity, or nil if there is none.
func (a *SyncAccount) LastPulledDate(entity EntityType) *time.Time {
	if a.LastPulledDates == nil {
		return nil
	}
	t, exists := a.LastPulledDates[entity]
	if !exists || t.IsZero() {
		return nil
	}
	return &t
}

func (a *SyncAccount) SetLastPulledDate(entity EntityType, t time.Time) {
	if a.LastPulledDates == nil {
		a.LastPulledDates = make(map[EntityType]time.Time)
	}
	a.LastPulledDates[entity] = t
}

// restoreLastPulledDate puts back a watermark read with LastPulledDate.
func (a *SyncAccount) restoreLastPulledDate(entity EntityType, t *time.Time) {
	if t == nil {
		delete(a.LastPulledDates, entity)
		return
	}
	a.SetLastPulledDate(entity, *t)
}

func (a *SyncAccount) clone() *SyncAccount {
	result := *a
	result.LastPulledDates = make(map[EntityType]time.Time, len(a.LastPulledDates))
	for k, v := range a.LastPulledDates {
		result.LastPulledDates[k] = v
	}
	return &result
}

var ErrAccountNotFound = errors.New("account not found")

// AccountStore loads and persists sync accounts.
type AccountStore interface {
	Accounts(ctx context.Context) ([]*SyncAccount, error)
	SaveAccount(ctx context.Context, account *SyncAccount) error
}

// MemoryAccountStore keeps accounts in memory. Accounts are copied in and out.
type MemoryAccountStore struct {
	mu       gosync.Mutex
	accounts map[string]*SyncAccount
}

func NewMemoryAccountStore(accounts ...*SyncAccount) *MemoryAccountStore {
	result := &MemoryAccountStore{accounts: make(map[string]*SyncAccount)}
	for _, a := range accounts {
		result.accounts[a.HubID] = a.clone()
	}
	return result
}

func (s *MemoryAccountStore) Accounts(ctx context.Context) ([]*SyncAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*SyncAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		result = append(result, a.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].HubID < result[j].HubID
	})
	return result, nil
}

func (s *MemoryAccountStore) Account(ctx context.Context, hubID string) (*SyncAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.accounts[hubID]
	if !exists {
		return nil, ErrAccountNotFound
	}
	return a.clone(), nil
}

func (s *MemoryAccountStore) SaveAccount(ctx context.Context, account *SyncAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.HubID] = account.clone()
	return nil
}
