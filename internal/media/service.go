package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mediavault/service/internal/apperr"
	"github.com/mediavault/service/internal/auth"
	"github.com/mediavault/service/internal/config"
	"github.com/mediavault/service/internal/events"
	"github.com/mediavault/service/internal/storage"
)

// uploadConcurrency bounds concurrent per-file processing within one batch.
const uploadConcurrency = 4

// Repository defines the metadata persistence operations the service needs.
type Repository interface {
	Create(ctx context.Context, obj *MediaObject) (*MediaObject, error)
	List(ctx context.Context, ownerID *string, limit int, before *time.Time, includeDeleted bool) ([]*MediaObject, error)
	GetByID(ctx context.Context, id string) (*MediaObject, error)
	SoftDelete(ctx context.Context, id string) (*MediaObject, error)
}

// Service orchestrates media uploads, retrieval, and deletion.
type Service struct {
	cfg      *config.Config
	repo     Repository
	store    storage.Storage
	notifier events.Notifier
}

// NewService creates a new media Service.
func NewService(cfg *config.Config, repo Repository, store storage.Storage, notifier events.Notifier) *Service {
	return &Service{cfg: cfg, repo: repo, store: store, notifier: notifier}
}

// UploadFile is one file received in an upload batch.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// View is a media record decorated with its download URL(s).
type View struct {
	MediaObject
	URL          string `json:"url,omitempty"`
	PresignedURL string `json:"presignedUrl,omitempty"`
}

// UploadFailure reports one failed file within a batch.
type UploadFailure struct {
	FileName string `json:"fileName"`
	Message  string `json:"message"`
}

// BatchResult aggregates per-file outcomes; Items and Failed preserve the
// input order of the batch.
type BatchResult struct {
	Items  []*View         `json:"items"`
	Failed []UploadFailure `json:"failed"`
}

// UploadBatch runs the upload pipeline for every file independently: one
// file's failure never aborts its siblings. Files are processed concurrently
// with a bounded worker count; outcomes land at their input index.
func (s *Service) UploadBatch(ctx context.Context, identity auth.Identity, files []UploadFile) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no file provided")
	}

	views := make([]*View, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, file := range files {
		g.Go(func() error {
			views[i], errs[i] = s.uploadOne(gctx, identity, file)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Items: []*View{}, Failed: []UploadFailure{}}
	for i, file := range files {
		if errs[i] != nil {
			result.Failed = append(result.Failed, UploadFailure{
				FileName: file.Name,
				Message:  apperr.MessageOf(errs[i]),
			})
			continue
		}
		result.Items = append(result.Items, views[i])
	}
	return result, nil
}

// uploadOne runs the per-file pipeline: MIME allow-list, raster probe, key
// derivation, object write, metadata record, best-effort event, URL synthesis.
func (s *Service) uploadOne(ctx context.Context, identity auth.Identity, file UploadFile) (*View, error) {
	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(file.Data).String()
	}
	if _, ok := allowedMIMEs[contentType]; !ok {
		return nil, apperr.New(apperr.KindValidation, "unsupported mime type")
	}

	width, height, err := probeImage(file.Data)
	if err != nil {
		msg := "invalid image file"
		if !s.cfg.IsProduction() {
			msg = fmt.Sprintf("invalid image file: %v", err)
		}
		return nil, apperr.Wrap(apperr.KindValidation, msg, err)
	}

	id := uuid.NewString()
	ext := ExtensionOf(contentType, file.Name)
	displayName := NormalizeFilename(file.Name)
	fallbackName := ASCIIFallback(displayName, ext)
	if displayName == "" {
		displayName = fallbackName
	}
	key := BuildKey(identity.ID, id, ext)
	disposition := ContentDisposition(displayName, fallbackName)

	if err := s.store.Upload(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data)), contentType, disposition); err != nil {
		// Nothing was recorded in metadata: no orphan row.
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to store file", err)
	}

	record := &MediaObject{
		ID:           id,
		OwnerID:      identity.ID,
		OriginalName: displayName,
		StoredKey:    key,
		MimeType:     contentType,
		SizeBytes:    int64(len(file.Data)),
		Width:        &width,
		Height:       &height,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		// The stored object is now orphaned; reclaimed out of band.
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to record file metadata", err)
	}

	s.publish(ctx, events.KindUploaded, created)

	return s.view(ctx, created, false), nil
}

// PresignRequest describes a client-direct upload intent.
type PresignRequest struct {
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

// PresignMetadata echoes the derived upload attributes back to the client.
type PresignMetadata struct {
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	SizeBytes    int64  `json:"sizeBytes"`
}

// PresignResult carries the signed PUT URL for a client-direct upload. No
// metadata row exists yet; the client reconciles after its PUT succeeds.
type PresignResult struct {
	ID        string          `json:"id"`
	UploadURL string          `json:"uploadUrl"`
	Key       string          `json:"key"`
	ExpiresIn int             `json:"expiresIn"`
	Metadata  PresignMetadata `json:"metadata"`
}

// PresignUpload validates the declared file attributes and issues a signed PUT
// URL under a freshly derived key. The reduced pipeline skips the probe, the
// object write, the metadata record, and the event.
func (s *Service) PresignUpload(ctx context.Context, identity auth.Identity, req PresignRequest) (*PresignResult, error) {
	if _, ok := allowedMIMEs[req.MimeType]; !ok {
		return nil, apperr.New(apperr.KindValidation, "unsupported mime type")
	}
	if req.SizeBytes <= 0 {
		return nil, apperr.New(apperr.KindValidation, "sizeBytes must be positive")
	}
	if req.SizeBytes > s.cfg.MaxUploadBytes {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("file exceeds max size of %d bytes", s.cfg.MaxUploadBytes))
	}

	id := uuid.NewString()
	ext := ExtensionOf(req.MimeType, req.FileName)
	displayName := NormalizeFilename(req.FileName)
	if displayName == "" {
		displayName = ASCIIFallback(displayName, ext)
	}
	key := BuildKey(identity.ID, id, ext)

	uploadURL, err := s.store.SignedPutURL(ctx, key, req.MimeType, s.cfg.PresignPutTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to issue upload url", err)
	}

	return &PresignResult{
		ID:        id,
		UploadURL: uploadURL,
		Key:       key,
		ExpiresIn: int(s.cfg.PresignPutTTL.Seconds()),
		Metadata: PresignMetadata{
			OriginalName: displayName,
			MimeType:     req.MimeType,
			SizeBytes:    req.SizeBytes,
		},
	}, nil
}

// ListParams are the validated query parameters of a listing request.
type ListParams struct {
	Limit  int
	Cursor string
	Scope  string
}

// ListResult is one page of records plus the cursor for the next page.
type ListResult struct {
	Items      []*View `json:"items"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// List returns one page of records under the caller's effective scope. A
// non-privileged caller asking for scope "all" is silently downgraded to
// "self"; only the privileged "all" scope includes soft-deleted records.
func (s *Service) List(ctx context.Context, identity auth.Identity, params ListParams) (*ListResult, error) {
	var (
		ownerID        *string
		includeDeleted bool
	)
	if params.Scope == "all" && identity.IsAdmin() {
		includeDeleted = true
	} else {
		ownerID = &identity.ID
	}

	var before *time.Time
	if params.Cursor != "" {
		t, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "invalid cursor", err)
		}
		before = &t
	}

	records, err := s.repo.List(ctx, ownerID, params.Limit+1, before, includeDeleted)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to list media", err)
	}

	result := &ListResult{Items: []*View{}}
	if len(records) > params.Limit {
		result.NextCursor = encodeCursor(records[params.Limit].UploadedAt)
		records = records[:params.Limit]
	}
	for _, rec := range records {
		result.Items = append(result.Items, s.view(ctx, rec, false))
	}
	return result, nil
}

// Get returns a single record with its download URL. Non-owners without the
// privileged role are refused; deleted records are visible (URL-less) only to
// the privileged role.
func (s *Service) Get(ctx context.Context, identity auth.Identity, id string, presign bool) (*View, error) {
	rec, err := s.getOwned(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusDeleted && !identity.IsAdmin() {
		return nil, apperr.New(apperr.KindNotFound, "media not found")
	}
	return s.view(ctx, rec, presign), nil
}

// Delete soft-deletes a record, publishes a deletion event, and optionally
// purges the stored object. The purge runs only after the status transition
// succeeded, so a failed transition never loses the object.
func (s *Service) Delete(ctx context.Context, identity auth.Identity, id string, purge bool) error {
	if _, err := s.getOwned(ctx, identity, id); err != nil {
		return err
	}

	deleted, err := s.repo.SoftDelete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Already deleted: observable as not found, never an error state.
		return apperr.New(apperr.KindNotFound, "media not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to delete media", err)
	}

	s.publish(ctx, events.KindDeleted, deleted)

	if purge {
		if err := s.store.Delete(ctx, deleted.StoredKey); err != nil {
			return apperr.Wrap(apperr.KindUpstream, "failed to purge stored object", err)
		}
	}
	return nil
}

// getOwned fetches a record and enforces the ownership rule.
func (s *Service) getOwned(ctx context.Context, identity auth.Identity, id string) (*MediaObject, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "media not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to load media", err)
	}
	if rec.OwnerID != identity.ID && !identity.IsAdmin() {
		return nil, apperr.New(apperr.KindForbidden, "access denied")
	}
	return rec, nil
}

// view decorates a record with its download URL. A resolution failure is
// logged and yields an empty URL rather than failing the caller, so one bad
// item cannot take down a whole page. withPresigned additionally attaches a
// freshly signed URL regardless of the public-download policy.
func (s *Service) view(ctx context.Context, rec *MediaObject, withPresigned bool) *View {
	v := &View{MediaObject: *rec}
	if rec.Status == StatusDeleted {
		return v
	}

	url, err := s.resolveDownloadURL(ctx, rec)
	if err != nil {
		log.Printf("resolve download url for %s: %v", rec.ID, err)
	} else {
		v.URL = url
	}

	if withPresigned {
		signed, err := s.signedGetURL(ctx, rec)
		if err != nil {
			log.Printf("presign download url for %s: %v", rec.ID, err)
		} else {
			v.PresignedURL = signed
		}
	}
	return v
}

// resolveDownloadURL synthesizes the download URL for an ACTIVE record: the
// public URL when public downloads are enabled and a base is configured,
// otherwise a freshly signed time-limited URL. Signed URLs are never cached
// or reused across requests.
func (s *Service) resolveDownloadURL(ctx context.Context, rec *MediaObject) (string, error) {
	if s.cfg.PublicDownloads {
		if url := s.store.PublicURL(rec.StoredKey); url != "" {
			return url, nil
		}
	}
	return s.signedGetURL(ctx, rec)
}

func (s *Service) signedGetURL(ctx context.Context, rec *MediaObject) (string, error) {
	ext := ExtensionOf(rec.MimeType, rec.OriginalName)
	disposition := ContentDisposition(rec.OriginalName, ASCIIFallback(rec.OriginalName, ext))
	return s.store.SignedGetURL(ctx, rec.StoredKey, s.cfg.DownloadURLTTL, disposition)
}

// publish sends a lifecycle event. Best-effort: failures are logged, never
// propagated, never retried.
func (s *Service) publish(ctx context.Context, kind events.Kind, rec *MediaObject) {
	err := s.notifier.Publish(ctx, events.Event{
		Kind:      kind,
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		StoredKey: rec.StoredKey,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("publish %s for %s: %v", kind, rec.ID, err)
	}
}

// encodeCursor renders a keyset cursor: the upload timestamp of the first row
// of the next page, opaque to clients.
func encodeCursor(t time.Time) string {
	return base64.RawURLEncoding.EncodeToString([]byte(t.UTC().Format(time.RFC3339Nano)))
}

func decodeCursor(cursor string) (time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode cursor: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cursor: %w", err)
	}
	return t, nil
}
