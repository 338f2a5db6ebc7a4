package sync

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
)

// Association links one object to the objects of another type.
type Association struct {
	FromID string
	ToIDs  []string
}

// CRMClient is the remote CRM.
type CRMClient interface {
	Search(ctx context.Context, creds *CredentialContext, entity EntityType, req SearchRequest) (SearchPage, error)
	BatchReadAssociations(ctx context.Context, creds *CredentialContext, from EntityType, to EntityType, ids []string) ([]Association, error)
	GetByID(ctx context.Context, creds *CredentialContext, entity EntityType, id string, properties []string) (Record, error)
}

const (
	DefaultAttendeeCacheSize   = 10000
	DefaultFollowUpConcurrency = 10
)

// AssociationResolver resolves related objects for one page of records at a time.
type AssociationResolver struct {
	client      CRMClient
	retryer     *Retryer
	creds       *CredentialContext
	concurrency int
	emails      *lru.Cache
}

func NewAssociationResolver(client CRMClient, retryer *Retryer, creds *CredentialContext, cacheSize int, concurrency int) (*AssociationResolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultAttendeeCacheSize
	}
	if concurrency <= 0 {
		concurrency = DefaultFollowUpConcurrency
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create attendee cache %w", err)
	}
	return &AssociationResolver{
		client:      client,
		retryer:     retryer,
		creds:       creds,
		concurrency: concurrency,
		emails:      cache,
	}, nil
}

func (r *AssociationResolver) batchRead(ctx context.Context, from EntityType, to EntityType, ids []string) ([]Association, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	operation := fmt.Sprintf("read %s to %s associations", from.Singular(), to.Singular())
	return retryValue(ctx, r.retryer, r.creds, operation, func(ctx context.Context) ([]Association, error) {
		return r.client.BatchReadAssociations(ctx, r.creds, from, to, ids)
	})
}

// ContactCompanies maps each contact id to its first associated company id.
// Contacts without a company have no entry.
func (r *AssociationResolver) ContactCompanies(ctx context.Context, contactIDs []string) (map[string]string, error) {
	associations, err := r.batchRead(ctx, Contacts, Companies, contactIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(associations))
	for _, a := range associations {
		if len(a.ToIDs) == 0 {
			continue
		}
		if _, exists := result[a.FromID]; !exists {
			result[a.FromID] = a.ToIDs[0]
		}
	}
	return result, nil
}

// MeetingContacts maps each meeting id to all associated contact ids.
func (r *AssociationResolver) MeetingContacts(ctx context.Context, meetingIDs []string) (map[string][]string, error) {
	associations, err := r.batchRead(ctx, Meetings, Contacts, meetingIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]string, len(associations))
	for _, a := range associations {
		result[a.FromID] = append(result[a.FromID], a.ToIDs...)
	}
	return result, nil
}

// AttendeeEmails looks up the email of every contact concurrently and returns
// them in contact order. Unknown contacts and contacts without an email are left out.
func (r *AssociationResolver) AttendeeEmails(ctx context.Context, contactIDs []string) ([]string, error) {
	emails := make([]string, len(contactIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range contactIDs {
		i, id := i, id
		g.Go(func() error {
			email, err := r.contactEmail(gctx, id)
			if err != nil {
				return err
			}
			emails[i] = email
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result := make([]string, 0, len(emails))
	for _, email := range emails {
		if email != "" {
			result = append(result, email)
		}
	}
	return result, nil
}

func (r *AssociationResolver) contactEmail(ctx context.Context, contactID string) (string, error) {
	if v, ok := r.emails.Get(contactID); ok {
		return v.(string), nil
	}
	operation := fmt.Sprintf("get contact %s", contactID)
	record, err := retryValue(ctx, r.retryer, r.creds, operation, func(ctx context.Context) (Record, error) {
		return r.client.GetByID(ctx, r.creds, Contacts, contactID, []string{"email"})
	})
	if errors.Is(err, ErrRecordNotFound) {
		r.emails.Add(contactID, "")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	email, _ := record.Properties.StringForPath("email")
	r.emails.Add(contactID, email)
	return email, nil
}
