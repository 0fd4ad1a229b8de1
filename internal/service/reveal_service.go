package service

import (
	"context"
	"errors"
	"time"

	"shelfmate/internal/domain"
	"shelfmate/internal/metrics"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UnlockResult reports what an unlock call did. AlreadyUnlocked is an
// idempotent success: nothing was written and nothing was charged.
type UnlockResult struct {
	MatchID          uint            `json:"match_id"`
	AlreadyUnlocked  bool            `json:"already_unlocked"`
	Payment          *models.Payment `json:"payment,omitempty"`
	RemainingCredits *int            `json:"remaining_credits,omitempty"`
}

// RevealService converts a payment or a free credit into an unlocked match
// exactly once.
type RevealService struct {
	db       *gorm.DB
	members  *repository.MemberRepository
	matches  *repository.MatchRepository
	payments *repository.PaymentRepository
	notify   *NotificationService
	currency string
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewRevealService(
	db *gorm.DB,
	members *repository.MemberRepository,
	matches *repository.MatchRepository,
	payments *repository.PaymentRepository,
	notify *NotificationService,
	currency string,
	m *metrics.Metrics,
	log *zap.Logger,
) *RevealService {
	if currency == "" {
		currency = "KRW"
	}
	return &RevealService{
		db: db, members: members, matches: matches, payments: payments,
		notify: notify, currency: currency, metrics: m, log: log,
	}
}

// preflight loads the match and checks the payer may unlock it.
func (s *RevealService) preflight(ctx context.Context, matchID, payerID uint) (*models.MatchRequest, error) {
	req, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	if !req.HasParty(payerID) {
		return nil, domain.ErrNotAPaidParty
	}
	if !req.IsAccepted() {
		return nil, domain.ErrMatchNotAccepted
	}
	return req, nil
}

// claimUnlock flips the unlock flag inside tx. When another writer got there
// first it returns ErrAlreadyUnlocked, which rolls tx back and is reported as
// a successful no-op, or ErrMatchNotAccepted if the match is no longer
// unlockable at all.
func (s *RevealService) claimUnlock(ctx context.Context, tx *gorm.DB, matchID uint, txRef string, at time.Time) error {
	matches := s.matches.WithTx(tx)
	ok, err := matches.MarkUnlocked(ctx, matchID, txRef, at)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	cur, err := matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if cur.Unlocked {
		return domain.ErrAlreadyUnlocked
	}
	return domain.ErrMatchNotAccepted
}

// UnlockWithPayment records a completed card payment identified by the
// provider's txRef and unlocks the match.
func (s *RevealService) UnlockWithPayment(ctx context.Context, matchID, payerID uint, txRef string, amount int64) (*UnlockResult, error) {
	const method = domain.PaymentMethodCard
	if txRef == "" || amount < 0 {
		return nil, domain.ErrInvalidInput
	}
	req, err := s.preflight(ctx, matchID, payerID)
	if err != nil {
		return nil, err
	}
	if req.Unlocked {
		s.metrics.IncrementUnlock(method, "already_unlocked")
		return &UnlockResult{MatchID: matchID, AlreadyUnlocked: true}, nil
	}

	counterpart := req.Counterpart(payerID)
	payment := &models.Payment{
		PayerID:       &payerID,
		CounterpartID: &counterpart,
		MatchID:       &matchID,
		Amount:        amount,
		Currency:      s.currency,
		Status:        domain.PaymentStatusCompleted,
		Method:        method,
		TransactionID: txRef,
	}
	var note *models.Notification
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.claimUnlock(ctx, tx, matchID, txRef, time.Now()); err != nil {
			return err
		}
		if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		var err error
		note, err = s.notify.Record(ctx, tx, counterpart, domain.NotificationContactRevealed, matchID, payerID)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyUnlocked):
		s.metrics.IncrementUnlock(method, "already_unlocked")
		return &UnlockResult{MatchID: matchID, AlreadyUnlocked: true}, nil
	case errors.Is(err, repository.ErrDuplicateTransaction):
		return s.resolveDuplicate(ctx, matchID, txRef)
	case err != nil:
		s.metrics.IncrementUnlock(method, "error")
		return nil, storeErr("unlock with payment", err)
	}

	s.notify.Deliver(ctx, note)
	s.metrics.IncrementUnlock(method, "unlocked")
	s.log.Info("match unlocked",
		zap.Uint("match_id", matchID),
		zap.Uint("payer_id", payerID),
		zap.String("method", method),
		zap.String("tx_ref", txRef),
		zap.Int64("amount", amount))
	return &UnlockResult{MatchID: matchID, Payment: payment}, nil
}

// resolveDuplicate handles a transaction id that is already on the ledger.
// For this match it is a retry; for any other match it is a reuse.
func (s *RevealService) resolveDuplicate(ctx context.Context, matchID uint, txRef string) (*UnlockResult, error) {
	existing, err := s.payments.GetByTransactionID(ctx, txRef)
	if err != nil {
		return nil, domain.Persistence("get payment", err)
	}
	if existing.MatchID == nil || *existing.MatchID != matchID {
		s.log.Warn("payment transaction id reused", zap.String("tx_ref", txRef), zap.Uint("match_id", matchID))
		return nil, domain.ErrTransactionReused
	}
	s.metrics.IncrementUnlock(domain.PaymentMethodCard, "already_unlocked")
	return &UnlockResult{MatchID: matchID, AlreadyUnlocked: true, Payment: existing}, nil
}

// UnlockWithFreeCredit spends one of the payer's free reveals. The credit
// and the unlock commit together or not at all.
func (s *RevealService) UnlockWithFreeCredit(ctx context.Context, matchID, payerID uint) (*UnlockResult, error) {
	const method = domain.PaymentMethodFreeReveal
	req, err := s.preflight(ctx, matchID, payerID)
	if err != nil {
		return nil, err
	}
	if req.Unlocked {
		return s.alreadyUnlockedWithCredits(ctx, matchID, payerID)
	}

	counterpart := req.Counterpart(payerID)
	txRef := "free_" + uuid.NewString()
	payment := &models.Payment{
		PayerID:       &payerID,
		CounterpartID: &counterpart,
		MatchID:       &matchID,
		Amount:        0,
		Currency:      s.currency,
		Status:        domain.PaymentStatusCompleted,
		Method:        method,
		TransactionID: txRef,
	}
	var (
		note      *models.Notification
		remaining int
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.claimUnlock(ctx, tx, matchID, txRef, time.Now()); err != nil {
			return err
		}
		members := s.members.WithTx(tx)
		spent, err := members.ConsumeFreeReveal(ctx, payerID)
		if err != nil {
			return err
		}
		if !spent {
			return domain.ErrInsufficientCredit
		}
		if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		if note, err = s.notify.Record(ctx, tx, counterpart, domain.NotificationContactRevealed, matchID, payerID); err != nil {
			return err
		}
		remaining, err = members.FreeRevealsCount(ctx, payerID)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyUnlocked):
		return s.alreadyUnlockedWithCredits(ctx, matchID, payerID)
	case errors.Is(err, domain.ErrInsufficientCredit):
		s.metrics.IncrementUnlock(method, "insufficient_credit")
		return nil, err
	case err != nil:
		s.metrics.IncrementUnlock(method, "error")
		return nil, storeErr("unlock with free credit", err)
	}

	s.notify.Deliver(ctx, note)
	s.metrics.IncrementUnlock(method, "unlocked")
	s.log.Info("match unlocked",
		zap.Uint("match_id", matchID),
		zap.Uint("payer_id", payerID),
		zap.String("method", method),
		zap.Int("remaining_credits", remaining))
	return &UnlockResult{MatchID: matchID, Payment: payment, RemainingCredits: &remaining}, nil
}

func (s *RevealService) alreadyUnlockedWithCredits(ctx context.Context, matchID, payerID uint) (*UnlockResult, error) {
	s.metrics.IncrementUnlock(domain.PaymentMethodFreeReveal, "already_unlocked")
	n, err := s.members.FreeRevealsCount(ctx, payerID)
	if err != nil {
		return nil, domain.Persistence("read credits", err)
	}
	return &UnlockResult{MatchID: matchID, AlreadyUnlocked: true, RemainingCredits: &n}, nil
}

// History lists the payer's ledger rows, newest first.
func (s *RevealService) History(ctx context.Context, payerID uint, limit, offset int) ([]models.Payment, error) {
	list, err := s.payments.ListByPayer(ctx, payerID, limit, offset)
	if err != nil {
		return nil, domain.Persistence("list payments", err)
	}
	return list, nil
}
