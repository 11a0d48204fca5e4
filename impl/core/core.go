// Package core orchestrates the sharing engine: create-with-dedup, the
// scan flow with its gate chain, the passcode barrier and the mutation
// paths. Collaborators come in through narrow interfaces so every piece
// is testable against fakes.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qrshare/entity"
	"qrshare/impl/access"
	"qrshare/impl/passcode"
	"qrshare/lib/sl"
)

type Database interface {
	BundleByPublicId(ctx context.Context, publicId string) (*entity.Bundle, error)
	SaveBundle(ctx context.Context, b *entity.Bundle) error
	UpdateBundleMeta(ctx context.Context, publicId string, upd *entity.BundleUpdate) error
	UpdateApproval(ctx context.Context, publicId string, approval entity.Approval) error
	UpdatePasscode(ctx context.Context, publicId string, hash, salt []byte) error
	DeleteBundle(ctx context.Context, publicId string) error
	TouchBundle(ctx context.Context, publicId, customMessage string) error
	FindReusable(ctx context.Context, creator string, documents []string) (*entity.Bundle, error)
	AdmitView(ctx context.Context, publicId string) (admitted bool, newCount int64, err error)
	SaveScanEvent(ctx context.Context, e *entity.ScanEvent) error
}

type AuthService interface {
	UserByToken(token string) (*entity.User, error)
}

// Catalog resolves document ids to display metadata. Ids that no longer
// resolve are silently dropped from the payload.
type Catalog interface {
	Documents(ctx context.Context, ids []string) ([]*entity.Document, error)
}

// Notifier delivers out-of-band messages. All methods are fire-and-forget
// from the core's point of view.
type Notifier interface {
	PasscodeCreated(b *entity.Bundle, plaintext string, chatId int64)
	ApprovalRequested(b *entity.Bundle)
	ApprovalDecided(b *entity.Bundle)
}

// ImageStore renders and persists the QR artifact for a signed URL and
// returns a retrievable image URL.
type ImageStore interface {
	StoreQR(publicId, signedURL string) (string, error)
}

type SignatureService interface {
	Sign(publicId string) string
	Verify(publicId, supplied string) bool
	SignedURL(baseURL, publicId string) string
}

type Core struct {
	db      Database
	sig     SignatureService
	images  ImageStore
	auth    AuthService
	catalog Catalog
	notify  Notifier
	baseURL string
	now     func() time.Time
	log     *slog.Logger
}

func New(db Database, sig SignatureService, images ImageStore, baseURL string, log *slog.Logger) *Core {
	if db == nil {
		panic("database is nil")
	}
	if sig == nil {
		panic("signature service is nil")
	}
	return &Core{
		db:      db,
		sig:     sig,
		images:  images,
		baseURL: baseURL,
		now:     time.Now,
		log:     log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) { c.auth = auth }
func (c *Core) SetCatalog(catalog Catalog)      { c.catalog = catalog }
func (c *Core) SetNotifier(notify Notifier)     { c.notify = notify }
func (c *Core) SetClock(now func() time.Time)   { c.now = now }

func (c *Core) AuthenticateByToken(token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(token)
}

// CreateBundle mints a new bundle or, for a default-parameter share of an
// identical document set by the same creator, reuses the existing one so
// QR artifacts are not re-minted. Concurrent identical first-shares may
// both create; afterwards the lookup is first-match-wins.
func (c *Core) CreateBundle(ctx context.Context, user *entity.User, req *entity.ShareRequest) (*entity.ShareResult, error) {
	logger := c.log.With(slog.String("creator", user.Username))

	if req.IsDefaultShare() {
		existing, err := c.db.FindReusable(ctx, user.Username, req.Documents)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup: %w", err)
		}
		if existing != nil {
			if err = c.db.TouchBundle(ctx, existing.PublicId, req.CustomMessage); err != nil {
				return nil, fmt.Errorf("touch bundle: %w", err)
			}
			if req.CustomMessage != "" {
				existing.CustomMessage = req.CustomMessage
			}
			logger.Debug("reusing existing bundle", sl.Bundle(existing.PublicId))
			return &entity.ShareResult{Bundle: existing, Reused: true}, nil
		}
	}

	now := c.now().UTC()
	b := &entity.Bundle{
		PublicId:      uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		CustomMessage: req.CustomMessage,
		CreatorId:     user.Username,
		OrgId:         user.OrgId,
		Documents:     append([]string(nil), req.Documents...),
		Access: entity.AccessControl{
			IsPublic:       req.Public(),
			HasPasscode:    req.Passcode != "",
			ShowLockStatus: req.ShowLockStatus,
			ExpiryDate:     req.ExpiryDate,
			PublishDate:    req.PublishDate,
			MaxViews:       req.MaxViews,
		},
		Approval:  entity.Approval{Required: req.RequireApproval, Status: entity.ApprovalPublished},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.RequireApproval {
		b.Approval.Status = entity.ApprovalPending
	}
	if req.Passcode != "" {
		hash, salt, err := passcode.Hash(req.Passcode)
		if err != nil {
			return nil, fmt.Errorf("hash passcode: %w", err)
		}
		b.Access.PasscodeHash = hash
		b.Access.PasscodeSalt = salt
	}
	b.Signature = c.sig.Sign(b.PublicId)

	// The QR artifact is stored before the bundle is persisted: an image
	// failure leaves no partial bundle behind.
	if c.images != nil {
		imageURL, err := c.images.StoreQR(b.PublicId, c.sig.SignedURL(c.baseURL, b.PublicId))
		if err != nil {
			return nil, fmt.Errorf("store qr image: %w", err)
		}
		b.QRImageURL = imageURL
	}

	if err := c.db.SaveBundle(ctx, b); err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	logger.Info("bundle created", sl.Bundle(b.PublicId), slog.Int("documents", len(b.Documents)))

	if c.notify != nil {
		if req.Passcode != "" && user.TelegramId != 0 {
			c.notify.PasscodeCreated(b, req.Passcode, user.TelegramId)
		}
		if b.Approval.Required {
			c.notify.ApprovalRequested(b)
		}
	}
	return &entity.ShareResult{Bundle: b, Reused: false}, nil
}

// ViewBundle runs the public scan flow: signature, accessibility, passcode
// barrier, then the atomic view admission. Every distinguishable attempt
// lands in the audit log regardless of outcome.
func (c *Core) ViewBundle(ctx context.Context, publicId, sig string, meta *entity.ScanMeta) (*entity.ViewOutcome, error) {
	logger := c.log.With(sl.Bundle(publicId))

	if !c.sig.Verify(publicId, sig) {
		c.record(ctx, publicId, entity.ActionScan, false, meta)
		logger.Warn("signature verification failed", slog.String("ip", meta.IPAddress))
		return nil, entity.ErrBadSignature
	}

	b, err := c.db.BundleByPublicId(ctx, publicId)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			c.record(ctx, publicId, entity.ActionScan, false, meta)
		}
		return nil, err
	}

	if res := access.Evaluate(b, c.now()); !res.Accessible() {
		c.record(ctx, publicId, entity.ActionScan, false, meta)
		logger.Debug("bundle not accessible", slog.String("reason", string(res)))
		return nil, entity.ErrForbidden
	}

	// The passcode barrier and private bundles disclose only the locked
	// summary; no view is consumed until the barrier is passed.
	if b.Access.HasPasscode || !b.Access.IsPublic {
		c.record(ctx, publicId, entity.ActionScan, true, meta)
		return &entity.ViewOutcome{Locked: lockedView(b)}, nil
	}

	full, err := c.admitAndServe(ctx, b, meta)
	if err != nil {
		return nil, err
	}
	return &entity.ViewOutcome{Full: full}, nil
}

// VerifyPasscode checks the supplied code for a passcode-protected bundle.
// A failed attempt is audited and never consumes a view.
func (c *Core) VerifyPasscode(ctx context.Context, publicId, sig, code string, meta *entity.ScanMeta) (*entity.BundleView, error) {
	logger := c.log.With(sl.Bundle(publicId))

	if !c.sig.Verify(publicId, sig) {
		c.record(ctx, publicId, entity.ActionScan, false, meta)
		logger.Warn("signature verification failed", slog.String("ip", meta.IPAddress))
		return nil, entity.ErrBadSignature
	}

	b, err := c.db.BundleByPublicId(ctx, publicId)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			c.record(ctx, publicId, entity.ActionScan, false, meta)
		}
		return nil, err
	}

	if res := access.Evaluate(b, c.now()); !res.Accessible() {
		c.record(ctx, publicId, entity.ActionScan, false, meta)
		return nil, entity.ErrForbidden
	}

	if !b.Access.HasPasscode {
		return nil, entity.NewValidationError("bundle has no passcode")
	}

	if !passcode.Verify(code, b.Access.PasscodeSalt, b.Access.PasscodeHash) {
		c.record(ctx, publicId, entity.ActionPasscodeAttempt, false, meta)
		logger.Warn("passcode attempt failed", slog.String("ip", meta.IPAddress))
		return nil, entity.ErrUnauthorized
	}
	c.record(ctx, publicId, entity.ActionPasscodeAttempt, true, meta)

	return c.admitAndServe(ctx, b, meta)
}

// admitAndServe performs the atomic quota admission and, if admitted,
// resolves the documents for the full payload.
func (c *Core) admitAndServe(ctx context.Context, b *entity.Bundle, meta *entity.ScanMeta) (*entity.BundleView, error) {
	admitted, newCount, err := c.db.AdmitView(ctx, b.PublicId)
	if err != nil {
		return nil, fmt.Errorf("admit view: %w", err)
	}
	if !admitted {
		c.record(ctx, b.PublicId, entity.ActionView, false, meta)
		return nil, entity.ErrForbidden
	}
	c.record(ctx, b.PublicId, entity.ActionView, true, meta)

	var docs []*entity.Document
	if c.catalog != nil {
		docs, err = c.catalog.Documents(ctx, b.Documents)
		if err != nil {
			// The view was already admitted; serve ids without metadata
			// rather than failing the disclosed request.
			c.log.Error("catalog lookup failed", sl.Bundle(b.PublicId), sl.Err(err))
			docs = nil
		}
	}
	if docs == nil {
		docs = make([]*entity.Document, 0, len(b.Documents))
		for _, id := range b.Documents {
			docs = append(docs, &entity.Document{Id: id})
		}
	}

	return &entity.BundleView{
		PublicId:      b.PublicId,
		Title:         b.Title,
		Description:   b.Description,
		CustomMessage: b.CustomMessage,
		Documents:     docs,
		ViewCount:     newCount,
	}, nil
}

// GetBundle returns the bundle to its creator or an org reader.
func (c *Core) GetBundle(ctx context.Context, user *entity.User, publicId string) (*entity.Bundle, error) {
	b, err := c.db.BundleByPublicId(ctx, publicId)
	if err != nil {
		return nil, err
	}
	if !entity.Capabilities(user.Role, user.RelationTo(b)).Read {
		return nil, entity.ErrForbidden
	}
	return b, nil
}

// UpdateBundle applies creator/admin metadata and access-control changes.
// The storage write carries only the supplied fields: the view counter is
// owned by the admission path and a metadata update must never write a
// stale value of it back.
func (c *Core) UpdateBundle(ctx context.Context, user *entity.User, publicId string, upd *entity.BundleUpdate) (*entity.Bundle, error) {
	b, err := c.db.BundleByPublicId(ctx, publicId)
	if err != nil {
		return nil, err
	}
	if !entity.Capabilities(user.Role, user.RelationTo(b)).Update {
		return nil, entity.ErrForbidden
	}
	if err = c.db.UpdateBundleMeta(ctx, publicId, upd); err != nil {
		return nil, fmt.Errorf("update bundle: %w", err)
	}
	if upd.Title != nil {
		b.Title = *upd.Title
	}
	if upd.Description != nil {
		b.Description = *upd.Description
	}
	if upd.CustomMessage != nil {
		b.CustomMessage = *upd.CustomMessage
	}
	if upd.ShowLockStatus != nil {
		b.Access.ShowLockStatus = *upd.ShowLockStatus
	}
	if upd.ExpiryDate != nil {
		b.Access.ExpiryDate = upd.ExpiryDate
	}
	if upd.ClearExpiryDate {
		b.Access.ExpiryDate = nil
	}
	if upd.PublishDate != nil {
		b.Access.PublishDate = upd.PublishDate
	}
	if upd.ClearPublishDate {
		b.Access.PublishDate = nil
	}
	if upd.MaxViews != nil {
		b.Access.MaxViews = *upd.MaxViews
	}
	b.UpdatedAt = c.now().UTC()
	return b, nil
}

// DeleteBundle removes the bundle entirely; there is no partial delete.
func (c *Core) DeleteBundle(ctx context.Context, user *entity.User, publicId string) error {
	b, err := c.db.BundleByPublicId(ctx, publicId)
	if err != nil {
		return err
	}
	if !entity.Capabilities(user.Role, user.RelationTo(b)).Delete {
		return entity.ErrForbidden
	}
	if err = c.db.DeleteBundle(ctx, publicId); err != nil {
		return fmt.Errorf("delete bundle: %w", err)
	}
	c.log.Info("bundle deleted", sl.Bundle(publicId), slog.String("by", user.Username))
	return nil
}

// ApproveBundle records an approval decision.
func (c *Core) ApproveBundle(ctx context.Context, user *entity.User, publicId string, status entity.ApprovalStatus, notes string) (*entity.Bundle, error) {
	if status != entity.ApprovalApproved && status != entity.ApprovalRejected {
		return nil, entity.NewValidationError("status must be approved or rejected")
	}
	b, err := c.db.BundleByPublicId(ctx, publicId)
	if err != nil {
		return nil, err
	}
	if !entity.Capabilities(user.Role, user.RelationTo(b)).Approve {
		return nil, entity.ErrForbidden
	}
	now := c.now().UTC()
	b.Approval.Status = status
	b.Approval.Approver = user.Username
	b.Approval.ApprovalDate = &now
	b.Approval.Notes = notes
	b.UpdatedAt = now
	if err = c.db.UpdateApproval(ctx, publicId, b.Approval); err != nil {
		return nil, fmt.Errorf("update approval: %w", err)
	}
	c.log.Info("approval decided", sl.Bundle(publicId),
		slog.String("status", string(status)), slog.String("approver", user.Username))
	if c.notify != nil {
		c.notify.ApprovalDecided(b)
	}
	return b, nil
}

// RotatePasscode replaces the bundle's passcode. The new plaintext goes
// out through the notifier only.
func (c *Core) RotatePasscode(ctx context.Context, user *entity.User, publicId, newCode string) error {
	b, err := c.db.BundleByPublicId(ctx, publicId)
	if err != nil {
		return err
	}
	if !entity.Capabilities(user.Role, user.RelationTo(b)).RotatePasscode {
		return entity.ErrForbidden
	}
	hash, salt, err := passcode.Hash(newCode)
	if err != nil {
		return fmt.Errorf("hash passcode: %w", err)
	}
	if err = c.db.UpdatePasscode(ctx, publicId, hash, salt); err != nil {
		return fmt.Errorf("update passcode: %w", err)
	}
	b.Access.HasPasscode = true
	b.Access.PasscodeHash = hash
	b.Access.PasscodeSalt = salt
	b.UpdatedAt = c.now().UTC()
	if c.notify != nil && user.TelegramId != 0 {
		c.notify.PasscodeCreated(b, newCode, user.TelegramId)
	}
	return nil
}

// record appends one audit event. Recording is best-effort: a storage
// failure here must never change the access decision already made.
func (c *Core) record(ctx context.Context, bundleId string, action entity.ScanAction, success bool, meta *entity.ScanMeta) {
	e := &entity.ScanEvent{
		Id:        uuid.NewString(),
		BundleId:  bundleId,
		Action:    action,
		Success:   success,
		Timestamp: c.now().UTC(),
	}
	if meta != nil {
		e.UserId = meta.UserId
		e.IPAddress = meta.IPAddress
		e.UserAgent = meta.UserAgent
		e.Country = meta.Country
	}
	if err := c.db.SaveScanEvent(ctx, e); err != nil {
		c.log.Error("save scan event", sl.Bundle(bundleId), sl.Err(err))
	}
}

func lockedView(b *entity.Bundle) *entity.LockedView {
	v := &entity.LockedView{
		PublicId:    b.PublicId,
		Title:       b.Title,
		Description: b.Description,
		HasPasscode: b.Access.HasPasscode,
	}
	if b.Access.ShowLockStatus {
		v.ShowLockStatus = true
	}
	return v
}
