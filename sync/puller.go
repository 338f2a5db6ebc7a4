package sync

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	StatusSuccess      = "success"
	StatusFailuresSeen = "failures_seen"
)

// Status is the outcome of one entity phase of one account.
type Status struct {
	HubID   string `json:"hub_id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Pages   int    `json:"pages"`
	Actions int    `json:"actions"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// Puller pulls changed CRM records of every account and emits them as actions.
// It embeds *SyncContext for shared sync configuration.
type Puller struct {
	*SyncContext
	Client    CRMClient
	Refresher TokenRefresher
	Accounts  AccountStore
	Sink      Sink
	Retryer   *Retryer

	now func() time.Time
}

func NewPuller(sc *SyncContext, client CRMClient, refresher TokenRefresher, accounts AccountStore, sink Sink) *Puller {
	return &Puller{
		SyncContext: sc,
		Client:      client,
		Refresher:   refresher,
		Accounts:    accounts,
		Sink:        sink,
		Retryer:     NewRetryer(sc.Config.Sync.RetryConfig()),
		now:         time.Now,
	}
}

// accountRun is the per account state of a pull.
type accountRun struct {
	account  *SyncAccount
	creds    *CredentialContext
	queue    *ActionQueue
	resolver *AssociationResolver
	logCtx   *log.Entry
}

// Pull runs every account in turn. Only failing to load the accounts is
// returned as an error; account and entity failures are logged and reported
// in the returned statuses.
func (p *Puller) Pull(ctx context.Context) ([]Status, error) {
	accounts, err := p.Accounts.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts %w", err)
	}
	log.WithFields(log.Fields{"run_id": p.RunID, "accounts": len(accounts)}).Info("Starting pull.")
	var result []Status
	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		result = append(result, p.PullAccount(ctx, account)...)
	}
	return result, nil
}

// PullAccount runs every entity phase of one account and drains its actions.
func (p *Puller) PullAccount(ctx context.Context, account *SyncAccount) []Status {
	logCtx := log.WithFields(log.Fields{"run_id": p.RunID, "hub_id": account.HubID})
	creds := NewCredentialContext(account, p.Refresher)
	if err := creds.Refresh(ctx); err != nil {
		logCtx.WithError(err).Error("Failed to refresh access token.")
	}

	resolver, err := NewAssociationResolver(p.Client, p.Retryer, creds, p.Config.Sync.AttendeeCacheSize, p.Config.Sync.FollowUpConcurrency)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create association resolver.")
		return failedStatuses(account.HubID, err)
	}
	run := &accountRun{
		account:  account,
		creds:    creds,
		queue:    NewActionQueue(ctx, p.Sink, p.Config.Sync.FlushThreshold, p.Config.Sync.QueueCapacity, logCtx),
		resolver: resolver,
		logCtx:   logCtx,
	}

	var result []Status
	for _, entity := range SyncOrder {
		status, err := p.pullEntity(ctx, run, entity)
		if err != nil {
			logCtx.WithError(err).WithField("entity", entity).Error("Failed to pull entity.")
		} else {
			logCtx.WithFields(log.Fields{"entity": entity, "actions": status.Actions, "pages": status.Pages}).Info("Pulled entity.")
		}
		result = append(result, status)
	}

	if err := run.queue.Drain(ctx); err != nil {
		logCtx.WithError(err).Error("Failed to send some actions.")
	}
	if err := p.Accounts.SaveAccount(ctx, account); err != nil {
		logCtx.WithError(err).Error("Failed to save account.")
	}
	return result
}

func failedStatuses(hubID string, err error) []Status {
	var result []Status
	for _, entity := range SyncOrder {
		result = append(result, Status{HubID: hubID, Type: string(entity), Status: StatusFailuresSeen, Error: err.Error()})
	}
	return result
}

// pullEntity pages through every record of entity modified since the
// watermark. The watermark only advances once every page has been processed.
func (p *Puller) pullEntity(ctx context.Context, run *accountRun, entity EntityType) (Status, error) {
	status := Status{HubID: run.account.HubID, Type: string(entity)}
	fail := func(err error) (Status, error) {
		status.Status = StatusFailuresSeen
		status.Error = err.Error()
		return status, err
	}

	now := p.now()
	watermark := run.account.LastPulledDate(entity)
	ec := p.Config.Entity(entity)
	properties := ec.SearchProperties(entity)
	transformer := ActionTransformer{Entity: entity, Watermark: watermark, Config: ec}

	var cursor PaginationCursor
	for {
		req := BuildSearchRequest(entity, cursor.Window(watermark, now), cursor, properties, p.Config.Sync.PageSize)
		page, err := retryValue(ctx, p.Retryer, run.creds, fmt.Sprintf("search %s", entity), func(ctx context.Context) (SearchPage, error) {
			return p.Client.Search(ctx, run.creds, entity, req)
		})
		if err != nil {
			return fail(fmt.Errorf("failed to fetch %s %w", entity, err))
		}
		status.Pages++
		actions, skipped, err := p.processPage(ctx, run, transformer, page)
		status.Actions += actions
		status.Skipped += skipped
		if err != nil {
			return fail(err)
		}
		if !cursor.Advance(page) {
			break
		}
	}

	run.account.SetLastPulledDate(entity, now)
	if err := p.Accounts.SaveAccount(ctx, run.account); err != nil {
		run.account.restoreLastPulledDate(entity, watermark)
		return fail(fmt.Errorf("failed to save %s watermark %w", entity, err))
	}
	status.Status = StatusSuccess
	return status, nil
}

// processPage resolves associations for the eligible records of page and
// enqueues one action for each.
func (p *Puller) processPage(ctx context.Context, run *accountRun, transformer ActionTransformer, page SearchPage) (int, int, error) {
	var eligible []Record
	for _, r := range page.Results {
		if transformer.Eligible(r) {
			eligible = append(eligible, r)
		} else {
			run.logCtx.WithFields(log.Fields{"entity": transformer.Entity, "id": r.ID}).Debug("Skipping record.")
		}
	}
	skipped := len(page.Results) - len(eligible)
	if len(eligible) == 0 {
		return 0, skipped, nil
	}
	ids := make([]string, len(eligible))
	for i, r := range eligible {
		ids[i] = r.ID
	}

	var (
		companies map[string]string
		attendees map[string][]string
		err       error
	)
	switch transformer.Entity {
	case Contacts:
		companies, err = run.resolver.ContactCompanies(ctx, ids)
	case Meetings:
		attendees, err = run.resolver.MeetingContacts(ctx, ids)
	}
	if err != nil {
		return 0, skipped, err
	}

	count := 0
	for _, r := range eligible {
		var action ActionEvent
		switch transformer.Entity {
		case Companies:
			action, err = asEvent(transformer.Company(r))
		case Contacts:
			action, err = asEvent(transformer.Contact(r, companies[r.ID]))
		case Meetings:
			var emails []string
			emails, err = run.resolver.AttendeeEmails(ctx, attendees[r.ID])
			if err == nil {
				action, err = asEvent(transformer.Meeting(r, emails))
			}
		}
		if err != nil {
			return count, skipped, fmt.Errorf("failed to transform %s %s %w", transformer.Entity.Singular(), r.ID, err)
		}
		if err := run.queue.Push(ctx, action); err != nil {
			return count, skipped, err
		}
		count++
	}
	return count, skipped, nil
}

func asEvent[T ActionEvent](action T, err error) (ActionEvent, error) {
	if err != nil {
		return nil, err
	}
	return action, nil
}
