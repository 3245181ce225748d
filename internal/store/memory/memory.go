// Package memory implements the domain store interfaces with in-process
// maps. It backs unit tests and the dev mode; semantics mirror the
// Postgres implementations, including the sentinel errors.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/domain"
)

// RoundStore implements domain.RoundStore in memory.
type RoundStore struct {
	mu     sync.RWMutex
	rounds map[uint64]domain.Round
}

// NewRoundStore creates an empty RoundStore.
func NewRoundStore() *RoundStore {
	return &RoundStore{rounds: make(map[uint64]domain.Round)}
}

func (s *RoundStore) Create(_ context.Context, round domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.State == domain.RoundStateCreated {
			return domain.ErrRoundAlreadyActive
		}
	}
	if _, ok := s.rounds[round.Epoch]; ok {
		return domain.ErrRoundAlreadyActive
	}
	s.rounds[round.Epoch] = round
	return nil
}

func (s *RoundStore) Get(_ context.Context, epoch uint64) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[epoch]
	if !ok {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return r, nil
}

func (s *RoundStore) GetActive(_ context.Context) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oldestInState(domain.RoundStateCreated)
}

func (s *RoundStore) GetOldestLocked(_ context.Context) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oldestInState(domain.RoundStateLocked)
}

// oldestInState must be called with the lock held.
func (s *RoundStore) oldestInState(state domain.RoundState) (domain.Round, error) {
	var best domain.Round
	found := false
	for _, r := range s.rounds {
		if r.State != state {
			continue
		}
		if !found || r.Epoch < best.Epoch {
			best = r
			found = true
		}
	}
	if !found {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return best, nil
}

func (s *RoundStore) GetLatest(_ context.Context) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best domain.Round
	found := false
	for _, r := range s.rounds {
		if !found || r.Epoch > best.Epoch {
			best = r
			found = true
		}
	}
	if !found {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return best, nil
}

func (s *RoundStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rounds := make([]domain.Round, 0, len(s.rounds))
	for _, r := range s.rounds {
		rounds = append(rounds, r)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Epoch > rounds[j].Epoch })
	return paginate(rounds, opts), nil
}

func (s *RoundStore) AddStake(_ context.Context, epoch uint64, side domain.Side, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[epoch]
	if !ok {
		return domain.ErrRoundNotFound
	}
	if r.State != domain.RoundStateCreated {
		return domain.ErrRoundNotBiddable
	}
	switch side {
	case domain.SideUp:
		sum := r.TotalUpAmount + amount
		if sum < r.TotalUpAmount {
			return domain.ErrAmountOverflow
		}
		r.TotalUpAmount = sum
		r.UpBetCount++
	case domain.SideDown:
		sum := r.TotalDownAmount + amount
		if sum < r.TotalDownAmount {
			return domain.ErrAmountOverflow
		}
		r.TotalDownAmount = sum
		r.DownBetCount++
	}
	r.UpdatedAt = time.Now().UTC()
	s.rounds[epoch] = r
	return nil
}

func (s *RoundStore) RemoveStake(_ context.Context, epoch uint64, side domain.Side, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[epoch]
	if !ok {
		return domain.ErrRoundNotFound
	}
	if r.State != domain.RoundStateCreated {
		return domain.ErrRoundNotBiddable
	}
	switch side {
	case domain.SideUp:
		if r.TotalUpAmount < amount {
			return domain.ErrAmountOverflow
		}
		r.TotalUpAmount -= amount
		r.UpBetCount--
	case domain.SideDown:
		if r.TotalDownAmount < amount {
			return domain.ErrAmountOverflow
		}
		r.TotalDownAmount -= amount
		r.DownBetCount--
	}
	r.UpdatedAt = time.Now().UTC()
	s.rounds[epoch] = r
	return nil
}

func (s *RoundStore) Lock(_ context.Context, epoch uint64, price *decimal.Decimal, lockedAt time.Time, next domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[epoch]
	if !ok {
		return domain.ErrRoundNotFound
	}
	if r.State != domain.RoundStateCreated {
		return domain.ErrAlreadyLocked
	}
	if _, ok := s.rounds[next.Epoch]; ok {
		return domain.ErrRoundAlreadyActive
	}

	r.State = domain.RoundStateLocked
	r.LockPrice = price
	at := lockedAt
	r.LockedAt = &at
	r.UpdatedAt = lockedAt
	s.rounds[epoch] = r
	s.rounds[next.Epoch] = next
	return nil
}

func (s *RoundStore) Close(_ context.Context, epoch uint64, price *decimal.Decimal, outcome domain.Outcome, feeBps uint32, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[epoch]
	if !ok {
		return domain.ErrRoundNotFound
	}
	if r.State != domain.RoundStateLocked {
		return domain.ErrNotLocked
	}

	r.State = domain.RoundStateClosed
	r.ClosePrice = price
	r.Outcome = &outcome
	r.FeeBps = feeBps
	at := closedAt
	r.ClosedAt = &at
	r.UpdatedAt = closedAt
	s.rounds[epoch] = r
	return nil
}

var _ domain.RoundStore = (*RoundStore)(nil)

type betKey struct {
	epoch       uint64
	participant string
}

// BetStore implements domain.BetStore in memory.
type BetStore struct {
	mu   sync.RWMutex
	bets map[betKey]domain.Bet
}

// NewBetStore creates an empty BetStore.
func NewBetStore() *BetStore {
	return &BetStore{bets: make(map[betKey]domain.Bet)}
}

func (s *BetStore) Create(_ context.Context, bet domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := betKey{bet.Epoch, bet.Participant}
	if _, ok := s.bets[k]; ok {
		return domain.ErrDuplicateBet
	}
	s.bets[k] = bet
	return nil
}

func (s *BetStore) Get(_ context.Context, epoch uint64, participant string) (domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bets[betKey{epoch, participant}]
	if !ok {
		return domain.Bet{}, domain.ErrBetNotFound
	}
	return b, nil
}

func (s *BetStore) Delete(_ context.Context, epoch uint64, participant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := betKey{epoch, participant}
	if _, ok := s.bets[k]; !ok {
		return domain.ErrBetNotFound
	}
	delete(s.bets, k)
	return nil
}

func (s *BetStore) MarkClaimed(_ context.Context, epoch uint64, participant string, payout uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := betKey{epoch, participant}
	b, ok := s.bets[k]
	if !ok {
		return domain.ErrBetNotFound
	}
	if b.Claimed {
		return domain.ErrAlreadyClaimed
	}
	b.Claimed = true
	b.Payout = payout
	t := at
	b.ClaimedAt = &t
	s.bets[k] = b
	return nil
}

func (s *BetStore) ListByRound(_ context.Context, epoch uint64, opts domain.ListOpts) ([]domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bets []domain.Bet
	for k, b := range s.bets {
		if k.epoch == epoch {
			bets = append(bets, b)
		}
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].PlacedAt.Before(bets[j].PlacedAt) })
	return paginate(bets, opts), nil
}

func (s *BetStore) ListByParticipant(_ context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bets []domain.Bet
	for k, b := range s.bets {
		if k.participant == participant {
			bets = append(bets, b)
		}
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].Epoch > bets[j].Epoch })
	return paginate(bets, opts), nil
}

var _ domain.BetStore = (*BetStore)(nil)

// BalanceStore implements domain.BalanceStore in memory.
type BalanceStore struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// NewBalanceStore creates an empty BalanceStore.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{balances: make(map[string]uint64)}
}

func (s *BalanceStore) Get(_ context.Context, account string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account], nil
}

func (s *BalanceStore) Credit(_ context.Context, account string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := s.balances[account] + amount
	if sum < s.balances[account] {
		return domain.ErrAmountOverflow
	}
	s.balances[account] = sum
	return nil
}

func (s *BalanceStore) Debit(_ context.Context, account string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[account] < amount {
		return domain.ErrInsufficientBalance
	}
	s.balances[account] -= amount
	return nil
}

var _ domain.BalanceStore = (*BalanceStore)(nil)

// GameConfigStore implements domain.GameConfigStore in memory.
type GameConfigStore struct {
	mu  sync.RWMutex
	cfg *domain.GameConfig
}

// NewGameConfigStore creates an empty GameConfigStore.
func NewGameConfigStore() *GameConfigStore {
	return &GameConfigStore{}
}

func (s *GameConfigStore) Get(_ context.Context) (domain.GameConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return domain.GameConfig{}, domain.ErrNotFound
	}
	return *s.cfg, nil
}

func (s *GameConfigStore) Put(_ context.Context, cfg domain.GameConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &cfg
	return nil
}

var _ domain.GameConfigStore = (*GameConfigStore)(nil)

// AuditStore implements domain.AuditStore in memory.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]domain.AuditEntry, len(s.entries))
	copy(entries, s.entries)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return paginate(entries, opts), nil
}

var _ domain.AuditStore = (*AuditStore)(nil)

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
