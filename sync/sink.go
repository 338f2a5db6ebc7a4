package sync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carlmjohnson/requests"
	log "github.com/sirupsen/logrus"
)

// LogSink writes every action to the log. It is used when no sink endpoint is configured.
type LogSink struct {
	Logger *log.Entry
}

func (s LogSink) Send(ctx context.Context, actions []ActionEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	for _, a := range actions {
		b, err := EncodeAction(a)
		if err != nil {
			return err
		}
		logger.WithField("action", string(b)).Info(a.Header().ActionName)
	}
	return nil
}

// NewSink returns an HTTPSink when a sink endpoint is configured, otherwise a LogSink.
func NewSink(sc *SyncContext) Sink {
	if sc.Config.API.Endpoints.Sink == "" {
		return LogSink{Logger: log.WithField("run_id", sc.RunID)}
	}
	return HTTPSink{SyncContext: sc}
}

// SinkError is the error body returned by the sink endpoint.
type SinkError map[string]interface{}

// HTTPSink posts batches as a json array to the sink endpoint.
type HTTPSink struct {
	*SyncContext
}

// SinkAPIBuilder returns a new requests.Builder configured for the sink endpoint.
func (s HTTPSink) SinkAPIBuilder() *requests.Builder {
	result := requests.
		URL(s.Config.API.Endpoints.Sink).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if s.RecordRequests {
		result = result.Transport(requests.Record(nil, fmt.Sprintf("testdata/.requests/%s/sink", s.RunID)))
	}
	return result
}

func (s HTTPSink) Send(ctx context.Context, actions []ActionEvent) error {
	body, err := EncodeActions(actions)
	if err != nil {
		return err
	}
	sinkError := SinkError{}
	builder := s.SinkAPIBuilder().
		BodyBytes(body).
		ContentType("application/json").
		ErrorJSON(&sinkError)
	if s.Config.API.Keys.Sink != "" {
		builder = builder.Bearer(s.Config.API.Keys.Sink)
	}
	err = builder.Fetch(ctx)
	if err != nil {
		log.WithField("run_id", s.RunID).Errorf("Sink Error: %+v", sinkError)
		return fmt.Errorf("failed to send %d actions %w", len(actions), err)
	}
	return nil
}
