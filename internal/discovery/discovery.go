package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/automonocle/automonocle/internal/hass"
	"github.com/automonocle/automonocle/internal/options"
)

// stateSource lists the platform's camera entities.
type stateSource interface {
	CameraStates(ctx context.Context) ([]hass.EntityState, error)
}

// Service runs discovery passes. One pass is fully sequential: seed
// the registry from HA camera entities, fold in go2rtc, then UniFi
// Protect, then entity attributes, in fixed priority order.
type Service struct {
	states stateSource
	relay  *RelayAdapter
	unifi  *UniFiAdapter
	opts   *options.Options
	logger *slog.Logger
}

// Result is the outcome of one discovery pass.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Records    []*Record
	Total      int
	Resolved   int
	RelayFound bool
	UniFiMode  UniFiMode
}

// NewService creates a discovery service.
func NewService(states stateSource, relay *RelayAdapter, unifi *UniFiAdapter, opts *options.Options) *Service {
	return &Service{
		states: states,
		relay:  relay,
		unifi:  unifi,
		opts:   opts,
		logger: slog.Default().With("component", "discovery"),
	}
}

// Run performs one discovery pass. Source failures degrade the result
// instead of failing the pass; the returned registry may be partially
// or entirely unresolved.
func (s *Service) Run(ctx context.Context) *Result {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	s.logger.Info("Starting camera discovery", "run_id", result.RunID)

	registry := NewRegistry()

	states, err := s.states.CameraStates(ctx)
	if err != nil {
		// Discovery continues: UniFi streams can still synthesize
		// records even when HA's state API is unreachable.
		s.logger.Warn("Could not list camera entities", "error", err)
	}
	s.logger.Info("Found camera entities", "count", len(states))
	registry.Seed(states, s.opts.CameraFilters)

	s.logger.Info("Checking go2rtc streams")
	relayStreams := s.relay.Streams(ctx)
	result.RelayFound = len(relayStreams) > 0
	registry.FoldRelay(relayStreams)

	s.logger.Info("Checking UniFi Protect integration")
	unifiStreams, mode := s.unifi.Streams(ctx, s.opts.ChannelIndex())
	result.UniFiMode = mode
	registry.FoldUniFi(unifiStreams, mode)

	s.logger.Info("Checking camera entity attributes")
	registry.FoldAttributes()

	result.Records = registry.Records()
	result.Total = len(result.Records)
	result.Resolved = registry.ResolvedCount()
	result.FinishedAt = time.Now()

	s.logger.Info("Discovery complete",
		"run_id", result.RunID,
		"cameras", result.Total,
		"resolved", result.Resolved,
	)
	return result
}
