package sync

import "github.com/google/uuid"

// SyncContext holds the configuration shared by every component of one pull run.
// It is immutable after construction.
type SyncContext struct {
	Config         Config
	RunID          string
	RecordRequests bool
}

func NewSyncContext(config Config) *SyncContext {
	return &SyncContext{
		Config:         config,
		RunID:          uuid.NewString(),
		RecordRequests: config.Sync.RecordRequests,
	}
}
