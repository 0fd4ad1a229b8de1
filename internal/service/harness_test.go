package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"shelfmate/config"
	"shelfmate/internal/domain"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/internal/service"
	"shelfmate/internal/testutil"
	"shelfmate/pkg/blobstore"
	"shelfmate/pkg/cycle"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type pushed struct {
	RecipientID uint
	Msg         service.PushMessage
}

type recordingPusher struct {
	mu   sync.Mutex
	msgs []pushed
}

func (p *recordingPusher) Name() string { return "test" }

func (p *recordingPusher) Push(_ context.Context, recipient *models.Member, msg service.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, pushed{RecipientID: recipient.ID, Msg: msg})
	return nil
}

func (p *recordingPusher) For(recipientID uint) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, m := range p.msgs {
		if m.RecipientID == recipientID {
			types = append(types, m.Msg.Type)
		}
	}
	return types
}

type harness struct {
	db       *gorm.DB
	clock    *cycle.Clock
	private  *blobstore.Memory
	public   *blobstore.Memory
	pusher   *recordingPusher
	members  *repository.MemberRepository
	payments *repository.PaymentRepository
	matchRep *repository.MatchRepository

	gate     *service.RegionGate
	apps     *service.ApplicationService
	matches  *service.MatchService
	disclose *service.DisclosureService
	reveal   *service.RevealService
	notify   *service.NotificationService
	account  *service.AccountService
}

// wednesday is inside a registration week: cycle 2026-10-11 is current and
// also the one applications target.
var wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, mustSeoul())

func mustSeoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		panic(err)
	}
	return loc
}

type harnessOpts struct {
	now      time.Time // zero means wednesday
	realtime bool      // read the wall clock instead of now
	fallback string
	cache    service.RegionCache
}

func newHarness(t *testing.T, opts ...harnessOpts) *harness {
	t.Helper()
	var o harnessOpts
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.now.IsZero() {
		o.now = wednesday
	}
	clock := cycle.New(mustSeoul())
	if !o.realtime {
		now := o.now
		clock = clock.WithNow(func() time.Time { return now })
	}
	db := testutil.NewDB(t)
	log := zap.NewNop()

	members := repository.NewMemberRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	photos := repository.NewPhotoRepository(db)
	payments := repository.NewPaymentRepository(db)
	notifs := repository.NewNotificationRepository(db)
	regions := repository.NewRegionRepository(db)

	h := &harness{
		db:       db,
		clock:    clock,
		private:  blobstore.NewMemory("originals"),
		public:   blobstore.NewMemory("blurred"),
		pusher:   &recordingPusher{},
		members:  members,
		payments: payments,
		matchRep: matchRepo,
	}
	h.gate = service.NewRegionGate(appRepo, regions, o.cache, clock, o.fallback, nil, log)
	h.notify = service.NewNotificationService(notifs, members, photos, nil, log, h.pusher)
	h.apps = service.NewApplicationService(appRepo, h.gate, clock, log)
	h.matches = service.NewMatchService(db, members, appRepo, matchRepo, photos, h.gate, h.notify, clock, nil, log)
	h.disclose = service.NewDisclosureService(photos, matchRepo, h.private, h.public, config.PhotoConfig{
		MaxBytes:     1 << 20,
		MaxPerMember: 3,
		OwnerURLTTL:  time.Hour,
		UnveilURLTTL: 30 * 24 * time.Hour,
	}, nil, log)
	h.reveal = service.NewRevealService(db, members, matchRepo, payments, h.notify, "KRW", nil, log)
	h.account = service.NewAccountService(db, members, appRepo, matchRepo, photos, payments, notifs, h.disclose, h.gate, clock, log)
	return h
}

func (h *harness) member(t *testing.T, o testutil.MemberOpts) *models.Member {
	t.Helper()
	return testutil.SeedMember(t, h.db, o)
}

// applied seeds a member and submits their application.
func (h *harness) applied(t *testing.T, o testutil.MemberOpts) *models.Member {
	t.Helper()
	m := h.member(t, o)
	_, err := h.apps.Apply(context.Background(), m)
	require.NoError(t, err)
	return m
}

// accepted walks a request from sender to receiver to accepted.
func (h *harness) accepted(t *testing.T, sender, receiver *models.Member) *models.MatchRequest {
	t.Helper()
	ctx := context.Background()
	req, err := h.matches.Submit(ctx, sender.ID, receiver.ID, "어떤 책을 좋아하세요?")
	require.NoError(t, err)
	req, err = h.matches.Respond(ctx, req.ID, receiver.ID, domain.DecisionAccept)
	require.NoError(t, err)
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func female(broad, fine string) testutil.MemberOpts {
	return testutil.MemberOpts{Gender: domain.GenderFemale, Broad: broad, Fine: fine}
}

func male(broad, fine string) testutil.MemberOpts {
	return testutil.MemberOpts{Gender: domain.GenderMale, Broad: broad, Fine: fine}
}
