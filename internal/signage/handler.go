package signage

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"signage-manifest/internal/platform/metrics"
	"signage-manifest/internal/platform/ratelimit"

	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxUploadBytes = 512 << 20
	multipartMemory       = 32 << 20
)

// HandlerConfig holds limits applied by the HTTP layer.
type HandlerConfig struct {
	// MaxUploadBytes caps the size of an upload request body.
	MaxUploadBytes int64
	// UploadRatePerMinute limits uploads per client IP; 0 disables the limit.
	UploadRatePerMinute int
}

// Handler exposes the manifest service over HTTP using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
	cfg     HandlerConfig
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{svc: svc, log: log, metrics: m, cfg: cfg}
}

// Routes mounts the management API and media serving on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/players", h.ListPlayers)
		r.Post("/players", h.CreatePlayer)
		r.Post("/players/edit/{player_id}", h.RenamePlayer)
		r.Post("/players/delete/{player_id}", h.DeletePlayer)

		r.Get("/media/{player_id}", h.GetManifest)
		r.Delete("/media/{player_id}/{identifier}", h.RemoveItem)
		r.Post("/media/update-expiry/{player_id}", h.UpdateExpiry)
		r.Post("/reorder/{player_id}", h.Reorder)
		r.With(ratelimit.UploadsPerMinute(h.cfg.UploadRatePerMinute)).
			Post("/upload/{player_id}", h.Upload)
	})
	r.Get("/uploads/{name}", h.ServeMedia)
}

// ListPlayers handles GET /api/players.
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.svc.ListPlayers(r.Context())
	if err != nil {
		h.fail(w, "list players", "", err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// CreatePlayer handles POST /api/players.
// Body: { "id": "lobby", "name": "Lobby TV" }.
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid player body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.UpsertPlayer(r.Context(), PlayerID(body.ID), body.Name); err != nil {
		h.fail(w, "create player", PlayerID(body.ID), err)
		return
	}
	h.log.Info("player registered", slog.String("player_id", body.ID))
	w.WriteHeader(http.StatusCreated)
}

// RenamePlayer handles POST /api/players/edit/{player_id}.
// Body: { "newName": "Lobby TV" }.
func (h *Handler) RenamePlayer(w http.ResponseWriter, r *http.Request) {
	id := playerParam(r)
	var body struct {
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.RenamePlayer(r.Context(), id, body.NewName); err != nil {
		h.fail(w, "rename player", id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeletePlayer handles POST /api/players/delete/{player_id}.
func (h *Handler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	id := playerParam(r)
	if err := h.svc.DeletePlayer(r.Context(), id); err != nil {
		h.fail(w, "delete player", id, err)
		return
	}
	h.log.Info("player deleted", slog.String("player_id", string(id)))
	h.mutated("delete_player")
	w.WriteHeader(http.StatusOK)
}

// GetManifest handles GET /api/media/{player_id}.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	id := playerParam(r)
	items, err := h.svc.GetManifest(r.Context(), id)
	if err != nil {
		h.fail(w, "get manifest", id, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Upload handles POST /api/upload/{player_id}. The multipart form carries
// either a "file" part (video or image) or a "url" field, plus the optional
// "type", "pageName", "displayDuration" and "expirationDateTime" fields.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	id := playerParam(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		h.log.Debug("invalid upload form", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	raw := RawItem{
		Type:            r.FormValue("type"),
		URLOrFilename:   r.FormValue("url"),
		PageName:        r.FormValue("pageName"),
		DisplayDuration: r.FormValue("displayDuration"),
		Expiration:      r.FormValue("expirationDateTime"),
	}

	var (
		item MediaItem
		err  error
	)
	file, header, ferr := r.FormFile("file")
	switch {
	case ferr == nil:
		defer file.Close()
		item, err = h.svc.IngestUpload(r.Context(), id, raw, file, header.Size, header.Filename, header.Header.Get("Content-Type"))
	case errors.Is(ferr, http.ErrMissingFile):
		if t, ok := ParseMediaType(raw.Type); ok && t.HasFile() {
			writeError(w, http.StatusBadRequest, "a file is required for "+string(t)+" items")
			return
		}
		item, err = h.svc.AddItem(r.Context(), id, raw)
	default:
		writeError(w, http.StatusBadRequest, "invalid file part")
		return
	}
	if err != nil {
		h.fail(w, "add item", id, err)
		return
	}

	h.log.Info("media item added",
		slog.String("player_id", string(id)),
		slog.String("identifier", item.Identifier),
		slog.String("type", string(item.Type)))
	h.mutated("add")
	writeJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/media/{player_id}/{identifier}.
// The identifier may be percent-encoded, e.g. for URL items.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := playerParam(r)
	identifier, err := pathParam(r, "identifier")
	if err != nil || identifier == "" {
		writeError(w, http.StatusBadRequest, "invalid identifier")
		return
	}
	if err := h.svc.RemoveItem(r.Context(), id, identifier); err != nil {
		h.fail(w, "remove item", id, err)
		return
	}
	h.log.Info("media item removed",
		slog.String("player_id", string(id)),
		slog.String("identifier", identifier))
	h.mutated("remove")
	w.WriteHeader(http.StatusOK)
}

// Reorder handles POST /api/reorder/{player_id}.
// Body: { "orderedFilenames": ["b.mp4", "a.png"] }; "orderedIdentifiers" is accepted too.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	id := playerParam(r)
	var body struct {
		OrderedFilenames   []string `json:"orderedFilenames"`
		OrderedIdentifiers []string `json:"orderedIdentifiers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	order := body.OrderedIdentifiers
	if order == nil {
		order = body.OrderedFilenames
	}
	if order == nil {
		writeError(w, http.StatusBadRequest, "orderedFilenames is required")
		return
	}
	if err := h.svc.Reorder(r.Context(), id, order); err != nil {
		h.fail(w, "reorder", id, err)
		return
	}
	h.mutated("reorder")
	w.WriteHeader(http.StatusOK)
}

// UpdateExpiry handles POST /api/media/update-expiry/{player_id}.
// Body: { "filename": "a.png", "newExpiry": "2030-01-01T10:00" }. newExpiry
// may also be epoch milliseconds, or null or "" to clear the expiry. The key
// itself is required.
func (h *Handler) UpdateExpiry(w http.ResponseWriter, r *http.Request) {
	id := playerParam(r)
	var body struct {
		Filename   string          `json:"filename"`
		Identifier string          `json:"identifier"`
		NewExpiry  json.RawMessage `json:"newExpiry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	identifier := body.Identifier
	if identifier == "" {
		identifier = body.Filename
	}
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if len(body.NewExpiry) == 0 {
		writeError(w, http.StatusBadRequest, "newExpiry is required")
		return
	}
	expiry, err := expiryString(body.NewExpiry)
	if err != nil {
		writeError(w, http.StatusBadRequest, "newExpiry must be a string or a number")
		return
	}
	if err := h.svc.UpdateExpiry(r.Context(), id, identifier, expiry); err != nil {
		h.fail(w, "update expiry", id, err)
		return
	}
	h.mutated("update_expiry")
	w.WriteHeader(http.StatusOK)
}

// ServeMedia handles GET /uploads/{name}.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid name")
		return
	}
	rc, err := h.svc.OpenMedia(r.Context(), name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.fail(w, "serve media", "", err)
		return
	}
	defer rc.Close()

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// fail maps a service error to its HTTP status and writes the error body.
func (h *Handler) fail(w http.ResponseWriter, op string, id PlayerID, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrDuplicateItem):
		status = http.StatusConflict
	}

	attrs := []any{slog.String("op", op), slog.String("error", err.Error())}
	if id != "" {
		attrs = append(attrs, slog.String("player_id", string(id)))
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", attrs...)
		writeError(w, status, "internal error")
		return
	}
	h.log.Info("request rejected", attrs...)
	writeError(w, status, err.Error())
}

func (h *Handler) mutated(op string) {
	if h.metrics == nil {
		return
	}
	h.metrics.IncMutation(op)
}

func playerParam(r *http.Request) PlayerID {
	id, err := pathParam(r, "player_id")
	if err != nil {
		return PlayerID(chi.URLParam(r, "player_id"))
	}
	return PlayerID(id)
}

// pathParam returns the decoded value of a route parameter. chi matches on
// the escaped path when the request has one.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

// expiryString normalizes a JSON newExpiry value to the form ParseExpiry takes.
// null maps to "", which clears the expiry.
func expiryString(raw json.RawMessage) (string, error) {
	if string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return "", err
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
