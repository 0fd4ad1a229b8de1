package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shelfmate/config"
	"shelfmate/internal/domain"
	"shelfmate/internal/metrics"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/pkg/blobstore"
	"shelfmate/pkg/obscure"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif"}

const signConcurrency = 8

// DisclosureService keeps every photo as a pair: an untouched original in
// the private bucket and a blurred derivative in the public one. Originals
// leave the private bucket only as signed URLs.
type DisclosureService struct {
	photos  *repository.PhotoRepository
	matches *repository.MatchRepository
	private blobstore.Private
	public  blobstore.Public
	cfg     config.PhotoConfig
	opts    obscure.Options
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewDisclosureService(
	photos *repository.PhotoRepository,
	matches *repository.MatchRepository,
	private blobstore.Private,
	public blobstore.Public,
	cfg config.PhotoConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) *DisclosureService {
	opts := obscure.DefaultOptions
	if cfg.MaxPixels > 0 {
		opts.MaxPixels = cfg.MaxPixels
	}
	return &DisclosureService{
		photos: photos, matches: matches, private: private, public: public,
		cfg: cfg, opts: opts, metrics: m, log: log,
	}
}

// SignedURL is a time-limited link to an original.
type SignedURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadResult references both stored assets.
type UploadResult struct {
	Photo    *models.Photo `json:"photo"`
	Original SignedURL     `json:"original"`
}

// Upload stores raw as ownerID's photo. The declared file name only feeds
// logs; the type is sniffed from the bytes.
func (s *DisclosureService) Upload(ctx context.Context, ownerID uint, filename string, raw []byte) (*UploadResult, error) {
	if len(raw) == 0 {
		return nil, domain.ErrUnsupportedImage
	}
	if s.cfg.MaxBytes > 0 && int64(len(raw)) > s.cfg.MaxBytes {
		return nil, domain.ErrImageTooLarge
	}
	mt := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, domain.ErrUnsupportedImage
	}
	if s.cfg.MaxPerMember > 0 {
		n, err := s.photos.CountByOwner(ctx, ownerID)
		if err != nil {
			return nil, domain.Persistence("count photos", err)
		}
		if n >= int64(s.cfg.MaxPerMember) {
			return nil, domain.ErrPhotoLimit
		}
	}

	blurred, err := obscure.Obscure(raw, s.opts)
	if errors.Is(err, obscure.ErrTooManyPixels) {
		s.log.Info("photo rejected", zap.Uint("owner_id", ownerID), zap.String("filename", filename), zap.Error(err))
		return nil, domain.ErrImageTooLarge
	}
	if err != nil {
		s.log.Info("photo rejected", zap.Uint("owner_id", ownerID), zap.String("filename", filename), zap.Error(err))
		return nil, domain.ErrUnsupportedImage
	}

	originalKey := strconv.FormatUint(uint64(ownerID), 10) + "/" + uuid.NewString() + mt.Extension()
	obscuredKey := blobstore.ObscuredName(originalKey)

	if err := s.private.Put(ctx, originalKey, raw, mt.String()); err != nil {
		return nil, fmt.Errorf("store original: %w: %w", domain.ErrBlobStore, err)
	}
	if err := s.public.Put(ctx, obscuredKey, blurred, obscure.ContentType); err != nil {
		if derr := s.private.Delete(context.WithoutCancel(ctx), originalKey); derr != nil {
			s.log.Error("orphaned original after obscured write failed", zap.String("key", originalKey), zap.Error(derr))
		}
		return nil, fmt.Errorf("store obscured: %w: %w", domain.ErrBlobStore, err)
	}

	photo := &models.Photo{
		OwnerID:     ownerID,
		OriginalKey: originalKey,
		ObscuredKey: obscuredKey,
		ObscuredURL: s.public.URL(obscuredKey),
		ContentType: mt.String(),
		SizeBytes:   int64(len(raw)),
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		if derr := s.deleteAssets(context.WithoutCancel(ctx), photo); derr != nil {
			s.log.Error("orphaned assets after photo insert failed", zap.String("key", originalKey), zap.Error(derr))
		}
		return nil, domain.Persistence("create photo", err)
	}
	s.metrics.IncrementPhotoUploads()
	s.log.Info("photo stored", zap.Uint("owner_id", ownerID), zap.Uint("photo_id", photo.ID), zap.String("content_type", photo.ContentType))

	signed, err := s.sign(ctx, originalKey, s.cfg.OwnerURLTTL)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Photo: photo, Original: signed}, nil
}

// SignOwnPhoto signs one of the caller's own originals. Obscured keys are
// refused; those copies are already public.
func (s *DisclosureService) SignOwnPhoto(ctx context.Context, ownerID uint, key string) (SignedURL, error) {
	if blobstore.IsObscuredName(key) {
		return SignedURL{}, domain.ErrInvalidInput
	}
	photo, err := s.photos.GetByOriginalKey(ctx, key)
	if err != nil {
		return SignedURL{}, storeErr("get photo", err)
	}
	if photo.OwnerID != ownerID {
		return SignedURL{}, domain.ErrNotAuthorized
	}
	return s.sign(ctx, key, s.cfg.OwnerURLTTL)
}

func (s *DisclosureService) sign(ctx context.Context, key string, ttl time.Duration) (SignedURL, error) {
	if ttl <= 0 || ttl > blobstore.MaxSignedURLTTL {
		ttl = blobstore.MaxSignedURLTTL
	}
	u, err := s.private.SignedURL(ctx, key, ttl)
	if errors.Is(err, blobstore.ErrNotFound) {
		return SignedURL{}, domain.ErrPhotoNotFound
	}
	if err != nil {
		return SignedURL{}, fmt.Errorf("sign %s: %w: %w", key, domain.ErrBlobStore, err)
	}
	return SignedURL{Key: key, URL: u, ExpiresAt: time.Now().Add(ttl)}, nil
}

// PartyPhotos are the signed originals of one party.
type PartyPhotos struct {
	MemberID uint        `json:"member_id"`
	Photos   []SignedURL `json:"photos"`
}

// Grant is the unveiled photo set of an unlocked match.
type Grant struct {
	MatchID uint          `json:"match_id"`
	Parties []PartyPhotos `json:"parties"`
}

// GrantAccess signs every original of both parties of an unlocked match.
// It writes nothing and may be called any number of times.
func (s *DisclosureService) GrantAccess(ctx context.Context, matchID, requesterID uint) (*Grant, error) {
	req, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	if !req.HasParty(requesterID) {
		return nil, domain.ErrNotAuthorized
	}
	if !req.IsAccepted() {
		return nil, domain.ErrMatchNotAccepted
	}
	if !req.Unlocked {
		return nil, domain.ErrNotUnlocked
	}

	owners := []uint{req.SenderID, req.ReceiverID}
	byOwner, err := s.photos.ListByOwners(ctx, owners)
	if err != nil {
		return nil, domain.Persistence("list photos", err)
	}

	grant := &Grant{MatchID: matchID, Parties: make([]PartyPhotos, len(owners))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for i, owner := range owners {
		photos := byOwner[owner]
		grant.Parties[i] = PartyPhotos{MemberID: owner, Photos: make([]SignedURL, len(photos))}
		for j := range photos {
			slot := &grant.Parties[i].Photos[j]
			key := photos[j].OriginalKey
			g.Go(func() error {
				signed, err := s.sign(gctx, key, s.cfg.UnveilURLTTL)
				if err != nil {
					return err
				}
				*slot = signed
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grant, nil
}

// DeletePhoto removes one of the caller's photos.
func (s *DisclosureService) DeletePhoto(ctx context.Context, ownerID, photoID uint) error {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return storeErr("get photo", err)
	}
	if photo.OwnerID != ownerID {
		return domain.ErrNotAuthorized
	}
	return s.deletePhoto(ctx, photo)
}

// DeleteAllForMember removes every photo of memberID, continuing past
// failures. The returned error aggregates all of them.
func (s *DisclosureService) DeleteAllForMember(ctx context.Context, memberID uint) error {
	photos, err := s.photos.ListByOwner(ctx, memberID)
	if err != nil {
		return domain.Persistence("list photos", err)
	}
	var errs error
	for i := range photos {
		errs = multierr.Append(errs, s.deletePhoto(ctx, &photos[i]))
	}
	return errs
}

func (s *DisclosureService) deletePhoto(ctx context.Context, photo *models.Photo) error {
	if err := s.deleteAssets(ctx, photo); err != nil {
		return fmt.Errorf("delete photo %d: %w: %w", photo.ID, domain.ErrBlobStore, err)
	}
	if err := s.photos.Delete(ctx, photo.ID); err != nil {
		return domain.Persistence("delete photo row", err)
	}
	return nil
}

// deleteAssets tries both objects even when the first delete fails.
func (s *DisclosureService) deleteAssets(ctx context.Context, photo *models.Photo) error {
	var errs error
	if err := s.private.Delete(ctx, photo.OriginalKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		errs = multierr.Append(errs, err)
	}
	if err := s.public.Delete(ctx, photo.ObscuredKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		errs = multierr.Append(errs, err)
	}
	return errs
}
