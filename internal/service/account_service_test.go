package service_test

import (
	"context"
	"testing"
	"time"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	dob := time.Date(1995, 3, 1, 0, 0, 0, 0, time.UTC)
	in := service.ProfileInput{
		Nickname:    "  책방지기 ",
		DateOfBirth: &dob,
		Gender:      domain.GenderFemale,
		RegionBroad: "서울",
		RegionFine:  "종로구",
		Contact:     "kakao:bookkeeper",
	}

	m, err := h.account.Join(ctx, "auth-join-1", in)
	require.NoError(t, err)
	assert.Equal(t, "책방지기", m.Nickname)
	assert.Equal(t, domain.DefaultFreeReveals, m.FreeRevealsCount)
	assert.Equal(t, "auth-join-1", m.LegacyAuthUserID)

	_, err = h.account.Join(ctx, "auth-join-1", in)
	assert.ErrorIs(t, err, domain.ErrDuplicateMember)

	young := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	in.DateOfBirth = &young
	_, err = h.account.Join(ctx, "auth-join-2", in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, female("서울", "마포구"))
	b := h.applied(t, male("서울", "마포구"))
	c := h.applied(t, male("서울", "마포구"))

	photo, err := h.disclose.Upload(ctx, a.ID, "a.png", pngBytes(t, 16, 16))
	require.NoError(t, err)
	matched := h.accepted(t, a, b)
	_, err = h.reveal.UnlockWithPayment(ctx, matched.ID, b.ID, "pg_tx_w", 4900)
	require.NoError(t, err)
	pending, err := h.matches.Submit(ctx, c.ID, a.ID, "늦은 편지")
	require.NoError(t, err)
	require.True(t, h.gate.IsOpen(ctx, a.Region()))

	require.NoError(t, h.account.Withdraw(ctx, a.ID))
	assert.ErrorIs(t, h.account.Withdraw(ctx, a.ID), domain.ErrMemberWithdrawn)

	// Photos are gone from both buckets.
	assert.False(t, h.private.Has(photo.Photo.OriginalKey))
	assert.False(t, h.public.Has(photo.Photo.ObscuredKey))

	// Pending requests are cancelled, accepted ones stay.
	got, err := h.matchRep.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusCancelled, got.Status)
	got, err = h.matchRep.GetByID(ctx, matched.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusAccepted, got.Status)

	// The only woman left, so the region closes.
	assert.False(t, h.gate.IsOpen(ctx, a.Region()))

	// The counterpart sees a placeholder and no contact.
	views, err := h.matches.ListMatches(ctx, b.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.WithdrawnNickname, views[0].Counterpart.Nickname)
	assert.True(t, views[0].Counterpart.Withdrawn)
	assert.Empty(t, views[0].Counterpart.Contact)

	// Ledger rows are untouched.
	var p models.Payment
	require.NoError(t, h.db.Where("transaction_id = ?", "pg_tx_w").First(&p).Error)
	require.NotNil(t, p.CounterpartID)
	assert.Equal(t, a.ID, *p.CounterpartID)

	// New requests to a withdrawn member fail.
	_, err = h.matches.Submit(ctx, c.ID, a.ID, "다시")
	assert.ErrorIs(t, err, domain.ErrMemberWithdrawn)
}

func TestPurge_KeepsLedgerRowsWithNulledReferences(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.applied(t, female("서울", "마포구"))
	b := h.applied(t, male("서울", "마포구"))
	req := h.accepted(t, a, b)
	_, err := h.reveal.UnlockWithPayment(ctx, req.ID, a.ID, "pg_tx_purge", 4900)
	require.NoError(t, err)

	require.NoError(t, h.account.Purge(ctx, a.ID))

	_, err = h.members.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	_, err = h.matchRep.GetByID(ctx, req.ID)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	var p models.Payment
	require.NoError(t, h.db.Where("transaction_id = ?", "pg_tx_purge").First(&p).Error)
	assert.Nil(t, p.PayerID)
	assert.Nil(t, p.MatchID)
	require.NotNil(t, p.CounterpartID)
	assert.Equal(t, b.ID, *p.CounterpartID)
	assert.EqualValues(t, 4900, p.Amount)
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)

	// b's notifications survive with the sender and match detached.
	var notes []models.Notification
	require.NoError(t, h.db.Where("recipient_id = ?", b.ID).Find(&notes).Error)
	require.NotEmpty(t, notes)
	for _, n := range notes {
		assert.Nil(t, n.SenderID)
		assert.Nil(t, n.MatchID)
	}
	// a's own notifications survive with no recipient.
	var orphans int64
	require.NoError(t, h.db.Model(&models.Notification{}).Where("recipient_id IS NULL").Count(&orphans).Error)
	assert.EqualValues(t, 1, orphans)
}

func TestSetFCMToken_LeavesCreditsAndWithdrawalAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	her := h.applied(t, female("서울", "마포구"))
	him := h.applied(t, male("서울", "마포구"))
	req := h.accepted(t, him, her)

	res, err := h.reveal.UnlockWithFreeCredit(ctx, req.ID, her.ID)
	require.NoError(t, err)
	require.Equal(t, 0, *res.RemainingCredits)

	// her still holds the credit of 1 loaded before the spend.
	require.NoError(t, h.account.SetFCMToken(ctx, her.ID, " device-token "))
	stored, err := h.members.GetByID(ctx, her.ID)
	require.NoError(t, err)
	assert.Equal(t, "device-token", stored.FCMToken)
	assert.Equal(t, 0, stored.FreeRevealsCount)

	require.NoError(t, h.account.SetFCMToken(ctx, her.ID, "device-token"), "an unchanged token is not an error")

	require.NoError(t, h.account.Withdraw(ctx, him.ID))
	assert.ErrorIs(t, h.account.SetFCMToken(ctx, him.ID, "late-token"), domain.ErrMemberWithdrawn)
	gone, err := h.members.GetByID(ctx, him.ID)
	require.NoError(t, err)
	assert.True(t, gone.Withdrawn())
	assert.NotNil(t, gone.WithdrawnAt)
	assert.Empty(t, gone.FCMToken)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.member(t, female("서울", "마포구"))

	nick, book := "  밤의 독서가 ", "파친코"
	require.NoError(t, h.account.UpdateProfile(ctx, m.ID, repository.ProfileFields{Nickname: &nick, FavoriteBook: &book}))
	got, err := h.members.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "밤의 독서가", got.Nickname)
	assert.Equal(t, "파친코", got.FavoriteBook)
	assert.Equal(t, m.Contact, got.Contact)
	assert.Equal(t, m.FreeRevealsCount, got.FreeRevealsCount)

	blank := " "
	assert.ErrorIs(t, h.account.UpdateProfile(ctx, m.ID, repository.ProfileFields{Nickname: &blank}), domain.ErrInvalidInput)

	require.NoError(t, h.account.Withdraw(ctx, m.ID))
	assert.ErrorIs(t, h.account.UpdateProfile(ctx, m.ID, repository.ProfileFields{FavoriteBook: &book}), domain.ErrMemberWithdrawn)
}
