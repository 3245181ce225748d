// Package service implements the game core: round lifecycle, bet placement,
// settlement, claims, and fund custody coordination.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Clish254/prediction-game/internal/domain"
)

// Event channels on the signal bus.
const (
	ChannelRounds = "rounds"
	ChannelBets   = "bets"

	// EventStream is the durable stream carrying every lifecycle event
	// for replay by late subscribers.
	EventStream = "game:events"
)

// GameService coordinates the round ledger, bet ledger, settlement engine,
// and custody. Every mutating operation is serialized by a single mutex and
// uses the injected clock as its only time source, so a sequence of
// operations is fully reproducible under a fake clock.
type GameService struct {
	mu sync.Mutex

	rounds  domain.RoundStore
	bets    domain.BetStore
	config  domain.GameConfigStore
	custody domain.Custody
	oracle  domain.PriceOracle
	clock   domain.Clock
	bus     domain.SignalBus
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewGameService creates a GameService with all required dependencies.
func NewGameService(
	rounds domain.RoundStore,
	bets domain.BetStore,
	config domain.GameConfigStore,
	custody domain.Custody,
	oracle domain.PriceOracle,
	clock domain.Clock,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		rounds:  rounds,
		bets:    bets,
		config:  config,
		custody: custody,
		oracle:  oracle,
		clock:   clock,
		bus:     bus,
		audit:   audit,
		logger:  logger.With(slog.String("component", "game_service")),
	}
}

// publishEvent sends a lifecycle event to the bus channel and appends it to
// the durable event stream. Bus failures are logged, never surfaced;
// persisted state is the source of truth.
func (s *GameService) publishEvent(ctx context.Context, channel, event string, fields map[string]any) {
	fields["event"] = event
	payload, err := json.Marshal(fields)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	if pubErr := s.bus.Publish(ctx, channel, payload); pubErr != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", event),
			slog.String("error", pubErr.Error()),
		)
	}
	if appendErr := s.bus.StreamAppend(ctx, EventStream, payload); appendErr != nil {
		s.logger.WarnContext(ctx, "stream append failed",
			slog.String("event", event),
			slog.String("error", appendErr.Error()),
		)
	}
}

// auditLog writes an audit entry, logging on failure instead of surfacing.
func (s *GameService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// loadConfig fetches the current game configuration.
func (s *GameService) loadConfig(ctx context.Context) (domain.GameConfig, error) {
	return s.config.Get(ctx)
}
