package media

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mediavault/service/internal/auth"
	"github.com/mediavault/service/internal/config"
	"github.com/mediavault/service/internal/response"
)

// multipartMemoryLimit is the in-memory threshold for multipart parsing;
// larger parts spill to temp files.
const multipartMemoryLimit = 8 << 20

// Handler holds HTTP handlers for media endpoints.
type Handler struct {
	svc *Service
	cfg *config.Config
}

// NewHandler creates a new media Handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// Upload godoc
//
//	@Summary		Upload one or more images
//	@Description	Accepts multipart file parts, stores each image, and returns download URLs. A multi-file batch reports per-file failures without aborting sibling files.
//	@Tags			media
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"image file (repeatable)"
//	@Success		201		{object}	response.Envelope{data=BatchResult}
//	@Failure		400		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		429		{object}	response.Envelope
//	@Router			/media/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartMemoryLimit)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.PayloadTooLarge(w, "upload exceeds size limit")
			return
		}
		response.BadRequest(w, "invalid multipart request")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, err := readUploadFiles(r)
	if err != nil {
		response.InternalError(w)
		return
	}
	if len(files) == 0 {
		response.BadRequest(w, "no file provided")
		return
	}
	for _, f := range files {
		if int64(len(f.Data)) > h.cfg.MaxUploadBytes {
			response.PayloadTooLarge(w, "upload exceeds size limit")
			return
		}
	}

	result, err := h.svc.UploadBatch(r.Context(), identity, files)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if len(result.Items) == 0 {
		// Whole batch failed: error at the batch level, first failure's
		// message kept for single-file callers, full detail attached.
		response.JSON(w, http.StatusBadRequest, response.Envelope{
			Success: false,
			Error:   result.Failed[0].Message,
			Data:    result,
		})
		return
	}
	if len(files) == 1 {
		response.Created(w, result.Items[0])
		return
	}
	response.Created(w, result)
}

// Presign godoc
//
//	@Summary		Issue a presigned PUT URL for client-direct upload
//	@Description	Validates the declared file attributes and returns a time-limited URL for uploading straight to object storage. No metadata record is created until the client reconciles.
//	@Tags			media
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		PresignRequest	true	"upload intent"
//	@Success		201		{object}	response.Envelope{data=PresignResult}
//	@Failure		400		{object}	response.Envelope
//	@Failure		429		{object}	response.Envelope
//	@Router			/media/presign [post]
func (h *Handler) Presign(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req PresignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.PresignUpload(r.Context(), identity, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, result)
}

// List godoc
//
//	@Summary		List media
//	@Description	Cursor-paginated listing, newest first. Scope "all" requires the admin role and is silently downgraded to "self" otherwise.
//	@Tags			media
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int		false	"page size (1-50, default 20)"
//	@Param			cursor	query		string	false	"opaque pagination cursor"
//	@Param			scope	query		string	false	"self or all"
//	@Success		200		{object}	response.Envelope{data=ListResult}
//	@Failure		400		{object}	response.Envelope
//	@Router			/media [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.svc.List(r.Context(), identity, params)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, result)
}

// Get godoc
//
//	@Summary		Get one media record
//	@Description	Returns the record with its download URL. presign=true additionally attaches a freshly signed URL.
//	@Tags			media
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"media id"
//	@Param			presign	query		bool	false	"attach a signed URL"
//	@Success		200		{object}	response.Envelope{data=View}
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/media/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	presign := r.URL.Query().Get("presign") == "true"
	view, err := h.svc.Get(r.Context(), identity, chi.URLParam(r, "id"), presign)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, view)
}

// Delete godoc
//
//	@Summary		Delete media
//	@Description	Soft-deletes the record. purge=true additionally removes the stored object in the same request.
//	@Tags			media
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"media id"
//	@Param			purge	query		bool	false	"also remove the stored object"
//	@Success		200		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/media/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	purge := r.URL.Query().Get("purge") == "true"
	if err := h.svc.Delete(r.Context(), identity, chi.URLParam(r, "id"), purge); err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "media deleted"})
}

// readUploadFiles collects file parts named "file" (or "files") in input order.
func readUploadFiles(r *http.Request) ([]UploadFile, error) {
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["files"]
	}

	files := make([]UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func parseListParams(r *http.Request) (ListParams, error) {
	params := ListParams{Limit: 20, Scope: "self"}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			return params, errors.New("limit must be between 1 and 50")
		}
		params.Limit = n
	}
	if v := r.URL.Query().Get("scope"); v != "" {
		if v != "self" && v != "all" {
			return params, errors.New("scope must be self or all")
		}
		params.Scope = v
	}
	params.Cursor = r.URL.Query().Get("cursor")
	return params, nil
}
