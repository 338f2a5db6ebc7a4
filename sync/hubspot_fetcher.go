package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

type HubSpotError map[string]interface{}

// HubSpotFetcher implements CRMClient against the HubSpot CRM v3 API.
// It embeds *SyncContext for shared sync configuration.
type HubSpotFetcher struct {
	*SyncContext
	limiter *rate.Limiter
}

func NewHubSpotFetcher(sc *SyncContext) *HubSpotFetcher {
	limit := rate.Inf
	burst := sc.Config.API.RateLimit.Burst
	if rps := sc.Config.API.RateLimit.RequestsPerSecond; rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &HubSpotFetcher{
		SyncContext: sc,
		limiter:     rate.NewLimiter(limit, burst),
	}
}

// CRMAPIBuilder returns a new requests.Builder configured for the CRM API.
func (f *HubSpotFetcher) CRMAPIBuilder() *requests.Builder {
	endpoint := f.Config.API.Endpoints.CRM
	if endpoint == "" {
		endpoint = DefaultCRMEndpoint
	}
	result := requests.
		URL(endpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if f.RecordRequests {
		result = result.Transport(requests.Record(nil, fmt.Sprintf("testdata/.requests/%s/crm", f.RunID)))
	}
	return result
}

func (f *HubSpotFetcher) wait(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed %w", err)
	}
	return nil
}

func (f *HubSpotFetcher) Search(ctx context.Context, creds *CredentialContext, entity EntityType, req SearchRequest) (SearchPage, error) {
	if err := f.wait(ctx); err != nil {
		return SearchPage{}, err
	}
	hubSpotError := HubSpotError{}
	var json string
	err := f.CRMAPIBuilder().
		Pathf("/crm/v3/objects/%s/search", entity).
		Bearer(creds.AccessToken()).
		BodyJSON(&req).
		ToString(&json).
		ErrorJSON(&hubSpotError).
		Fetch(ctx)
	if err != nil {
		log.WithField("hub_id", creds.HubID()).Debugf("HubSpot Error: %+v", hubSpotError)
		return SearchPage{}, fmt.Errorf("failed to search %s %w", entity, err)
	}
	page, dropped, err := SearchPageFromJSON(json)
	if err != nil {
		return page, fmt.Errorf("failed to read %s search response %w", entity, err)
	}
	if dropped > 0 {
		log.WithFields(log.Fields{"hub_id": creds.HubID(), "entity": entity, "dropped": dropped}).
			Debug("Dropped malformed search results.")
	}
	return page, nil
}

type associationInput struct {
	ID string `json:"id"`
}

type associationsRequest struct {
	Inputs []associationInput `json:"inputs"`
}

func (f *HubSpotFetcher) BatchReadAssociations(ctx context.Context, creds *CredentialContext, from EntityType, to EntityType, ids []string) ([]Association, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	req := associationsRequest{Inputs: make([]associationInput, len(ids))}
	for i, id := range ids {
		req.Inputs[i] = associationInput{ID: id}
	}
	hubSpotError := HubSpotError{}
	var json string
	err := f.CRMAPIBuilder().
		Pathf("/crm/v3/associations/%s/%s/batch/read", from.AssociationName(), to.AssociationName()).
		Bearer(creds.AccessToken()).
		BodyJSON(&req).
		ToString(&json).
		ErrorJSON(&hubSpotError).
		Fetch(ctx)
	if err != nil {
		log.WithField("hub_id", creds.HubID()).Debugf("HubSpot Error: %+v", hubSpotError)
		return nil, fmt.Errorf("failed to read %s to %s associations %w", from.Singular(), to.Singular(), err)
	}
	if !gjson.Valid(json) {
		return nil, errors.New("invalid json response")
	}
	var result []Association
	for _, r := range gjson.Get(json, "results").Array() {
		a := Association{FromID: r.Get("from.id").String()}
		for _, t := range r.Get("to").Array() {
			if id := t.Get("id").String(); id != "" {
				a.ToIDs = append(a.ToIDs, id)
			}
		}
		if a.FromID != "" {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *HubSpotFetcher) GetByID(ctx context.Context, creds *CredentialContext, entity EntityType, id string, properties []string) (Record, error) {
	if err := f.wait(ctx); err != nil {
		return Record{}, err
	}
	var json string
	builder := f.CRMAPIBuilder().
		Pathf("/crm/v3/objects/%s/%s", entity, id).
		Bearer(creds.AccessToken()).
		CheckStatus(http.StatusOK, http.StatusNotFound).
		AddValidator(func(res *http.Response) error {
			if res.StatusCode == http.StatusNotFound {
				return ErrRecordNotFound
			}
			return nil
		}).
		ToString(&json)
	if len(properties) > 0 {
		builder = builder.Param("properties", strings.Join(properties, ","))
	}
	err := builder.Fetch(ctx)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%s %s %w", entity.Singular(), id, ErrRecordNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get %s %s %w", entity.Singular(), id, err)
	}
	if !gjson.Valid(json) {
		return Record{}, errors.New("invalid json response")
	}
	return RecordFromJSON(gjson.Parse(json))
}
