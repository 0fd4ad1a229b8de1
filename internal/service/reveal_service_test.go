package service_test

import (
	"context"
	"sync"
	"testing"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"
	"shelfmate/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countPayments(t *testing.T, h *harness) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.Payment{}).Count(&n).Error)
	return n
}

func TestUnlockWithPayment_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, female("서울", "마포구"))
	b := h.applied(t, male("서울", "마포구"))
	req := h.accepted(t, a, b)

	res, err := h.reveal.UnlockWithPayment(ctx, req.ID, a.ID, "pg_tx_001", 4900)
	require.NoError(t, err)
	assert.False(t, res.AlreadyUnlocked)
	require.NotNil(t, res.Payment)
	assert.Equal(t, domain.PaymentMethodCard, res.Payment.Method)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Payment.Status)
	assert.Equal(t, b.ID, *res.Payment.CounterpartID)

	// Retry with the same reference, and a later confirmation with another.
	res, err = h.reveal.UnlockWithPayment(ctx, req.ID, a.ID, "pg_tx_001", 4900)
	require.NoError(t, err)
	assert.True(t, res.AlreadyUnlocked)
	res, err = h.reveal.UnlockWithPayment(ctx, req.ID, b.ID, "pg_tx_002", 4900)
	require.NoError(t, err)
	assert.True(t, res.AlreadyUnlocked)

	assert.EqualValues(t, 1, countPayments(t, h))
	assert.Equal(t, []string{domain.NotificationMatchRequest, domain.NotificationContactRevealed}, h.pusher.For(b.ID))
}

func TestUnlockWithPayment_ConcurrentRetries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, female("서울", "마포구"))
	b := h.applied(t, male("서울", "마포구"))
	req := h.accepted(t, a, b)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		unlocked int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.reveal.UnlockWithPayment(ctx, req.ID, a.ID, "pg_tx_race", 4900)
			if !assert.NoError(t, err) {
				return
			}
			if !res.AlreadyUnlocked {
				mu.Lock()
				unlocked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, unlocked)
	assert.EqualValues(t, 1, countPayments(t, h))
}

func TestUnlockWithPayment_TransactionReusedOnAnotherMatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, female("서울", "마포구"))
	b := h.applied(t, male("서울", "마포구"))
	c := h.applied(t, male("서울", "마포구"))
	first := h.accepted(t, a, b)
	second := h.accepted(t, a, c)

	_, err := h.reveal.UnlockWithPayment(ctx, first.ID, a.ID, "pg_tx_dup", 4900)
	require.NoError(t, err)

	_, err = h.reveal.UnlockWithPayment(ctx, second.ID, a.ID, "pg_tx_dup", 4900)
	assert.ErrorIs(t, err, domain.ErrTransactionReused)

	got, err := h.matchRep.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, got.Unlocked, "the failed unlock rolled back")
}

func TestUnlock_Preconditions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, female("서울", "마포구"))
	b := h.applied(t, male("서울", "마포구"))
	outsider := h.applied(t, male("서울", "마포구"))

	pending, err := h.matches.Submit(ctx, a.ID, b.ID, "안녕하세요")
	require.NoError(t, err)

	_, err = h.reveal.UnlockWithPayment(ctx, pending.ID, a.ID, "tx", 4900)
	assert.ErrorIs(t, err, domain.ErrMatchNotAccepted)
	_, err = h.reveal.UnlockWithFreeCredit(ctx, pending.ID, a.ID)
	assert.ErrorIs(t, err, domain.ErrMatchNotAccepted)

	_, err = h.reveal.UnlockWithPayment(ctx, pending.ID, outsider.ID, "tx", 4900)
	assert.ErrorIs(t, err, domain.ErrNotAPaidParty)

	_, err = h.reveal.UnlockWithPayment(ctx, 31337, a.ID, "tx", 4900)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	_, err = h.reveal.UnlockWithPayment(ctx, pending.ID, a.ID, "", 4900)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.EqualValues(t, 0, countPayments(t, h))
}

func TestUnlockWithFreeCredit_InsufficientCreditRollsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, testutil.MemberOpts{Gender: domain.GenderFemale, FreeReveals: testutil.Int(0)})
	b := h.applied(t, male("서울", "마포구"))
	req := h.accepted(t, a, b)

	_, err := h.reveal.UnlockWithFreeCredit(ctx, req.ID, a.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredit)

	got, err := h.matchRep.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, got.Unlocked)
	assert.EqualValues(t, 0, countPayments(t, h))
	assert.NotContains(t, h.pusher.For(b.ID), domain.NotificationContactRevealed)
}

func TestUnlockWithFreeCredit_AlreadyUnlockedSpendsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, female("서울", "마포구"))
	b := h.applied(t, testutil.MemberOpts{Gender: domain.GenderMale, FreeReveals: testutil.Int(1)})
	req := h.accepted(t, a, b)

	_, err := h.reveal.UnlockWithPayment(ctx, req.ID, a.ID, "pg_tx_100", 4900)
	require.NoError(t, err)

	res, err := h.reveal.UnlockWithFreeCredit(ctx, req.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyUnlocked)
	require.NotNil(t, res.RemainingCredits)
	assert.Equal(t, 1, *res.RemainingCredits)
}

// Two different matches compete for the payer's single credit.
func TestUnlockWithFreeCredit_ConcurrentSpendsOneCredit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	payer := h.applied(t, testutil.MemberOpts{Gender: domain.GenderMale, FreeReveals: testutil.Int(1)})
	x := h.applied(t, female("서울", "마포구"))
	y := h.applied(t, female("서울", "마포구"))
	m1 := h.accepted(t, x, payer)
	m2 := h.accepted(t, y, payer)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, id := range []uint{m1.ID, m2.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.reveal.UnlockWithFreeCredit(ctx, id, payer.ID)
		}()
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrInsufficientCredit):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)

	var unlocked int64
	require.NoError(t, h.db.Model(&models.MatchRequest{}).Where("unlocked = ?", true).Count(&unlocked).Error)
	assert.EqualValues(t, 1, unlocked)

	n, err := h.members.FreeRevealsCount(ctx, payer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.EqualValues(t, 1, countPayments(t, h))
}

// One match hit many times with the same credit.
func TestUnlockWithFreeCredit_ConcurrentSameMatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	payer := h.applied(t, testutil.MemberOpts{Gender: domain.GenderMale, FreeReveals: testutil.Int(3)})
	x := h.applied(t, female("서울", "마포구"))
	req := h.accepted(t, x, payer)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.reveal.UnlockWithFreeCredit(ctx, req.ID, payer.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := h.members.FreeRevealsCount(ctx, payer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "exactly one credit spent")
	assert.EqualValues(t, 1, countPayments(t, h))
}
