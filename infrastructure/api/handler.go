// Package api exposes accounts, history and uploads over HTTP next to the
// WebSocket endpoint.
package api

import (
	"direct-chat/auth"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/services"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Attachments is the read side of the attachment store.
type Attachments interface {
	Open(filename string) (*os.File, string, error)
}

type Config struct {
	Auth        services.IAuthService
	Chat        services.IChatService
	Verifier    contract.IdentityVerifier
	Attachments Attachments
	// WebSocket and Metrics are mounted as given, nil handlers are skipped.
	WebSocket     http.Handler
	Metrics       http.Handler
	TokenDuration time.Duration
	SecureCookie  bool
}

type Handler struct {
	log *slog.Logger
	cfg Config
}

// NewHandler builds the complete HTTP surface of the service.
func NewHandler(log *slog.Logger, cfg Config) http.Handler {
	h := &Handler{log: log, cfg: cfg}
	protected := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireIdentity(cfg.Verifier, fn)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)
	mux.Handle("GET /authenticate", protected(h.authenticate))
	mux.Handle("GET /people", protected(h.people))
	mux.Handle("GET /messages/{userId}", protected(h.history))
	mux.Handle("GET /messages/{userId}/search", protected(h.search))
	mux.Handle("GET /uploads/{filename}", protected(h.upload))
	if cfg.WebSocket != nil {
		mux.Handle("GET /ws", cfg.WebSocket)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	return mux
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type person struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Text      string    `json:"text,omitempty"`
	File      *string   `json:"file"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type page struct {
	Messages []message `json:"messages"`
	Next     *string   `json:"next"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	session, err := h.cfg.Auth.Register(creds.Username, creds.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.setToken(w, session.Token)
	h.reply(w, http.StatusCreated, toPerson(session.Identity, true))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	session, err := h.cfg.Auth.Login(creds.Username, creds.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.setToken(w, session.Token)
	h.reply(w, http.StatusOK, toPerson(session.Identity, true))
}

func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	h.reply(w, http.StatusOK, toPerson(identity, true))
}

func (h *Handler) people(w http.ResponseWriter, _ *http.Request) {
	people, err := h.cfg.Chat.People()
	if err != nil {
		h.fail(w, err)
		return
	}
	online := lo.SliceToMap(h.cfg.Chat.Online(), func(i domain.Identity) (string, bool) {
		return i.UserID, true
	})
	h.reply(w, http.StatusOK, lo.Map(people, func(i domain.Identity, _ int) person {
		return toPerson(i, online[i.UserID])
	}))
}

// history returns the whole conversation, or one page of it when the
// "cursor" query parameter is present (an empty cursor starts at the newest).
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	peer := r.PathValue("userId")

	if r.URL.Query().Has("cursor") {
		cursor := lo.EmptyableToPtr(r.URL.Query().Get("cursor"))
		messages, next, err := h.cfg.Chat.Page(r.Context(), caller.UserID, peer, cursor)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.reply(w, http.StatusOK, page{Messages: toMessages(messages), Next: next})
		return
	}

	messages, err := h.cfg.Chat.History(r.Context(), caller.UserID, peer)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, toMessages(messages))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	messages, err := h.cfg.Chat.Search(r.Context(), caller.UserID, r.PathValue("userId"), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, toMessages(messages))
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	file, contentType, err := h.cfg.Attachments.Open(r.PathValue("filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// Uploads come from other users: never let them script this origin
	w.Header().Set("Content-Security-Policy", "sandbox; default-src 'none'; img-src 'self'; media-src 'self'")
	disposition := "attachment"
	if renderable(contentType) {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": info.Name()}))
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// renderable reports whether the browser may display a file of this type
// in place. Anything able to carry script is downloaded instead.
func renderable(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case mediaType == "image/svg+xml":
		return false
	case mediaType == "text/plain",
		strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "audio/"),
		strings.HasPrefix(mediaType, "video/"):
		return true
	default:
		return false
	}
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var creds credentials
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&creds); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return credentials{}, false
	}
	return creds, true
}

func (h *Handler) setToken(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.TokenDuration > 0 {
		cookie.MaxAge = int(h.cfg.TokenDuration.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug("Response not written", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrInvalidCredentials), errors.Is(err, errors.ErrAuthFailure):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func toPerson(identity domain.Identity, online bool) person {
	return person{UserID: identity.UserID, Username: identity.Username, Online: online}
}

func toMessages(messages []domain.Message) []message {
	return lo.Map(messages, func(m domain.Message, _ int) message {
		return message{
			ID:        m.ID.String(),
			Sender:    m.SenderID,
			Receiver:  m.ReceiverID,
			Text:      m.Text,
			File:      lo.EmptyableToPtr(m.StoredFilename()),
			Lang:      m.Lang,
			CreatedAt: m.CreatedAt,
		}
	})
}
