package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dec/api/internal/assets"
	"dec/api/internal/auth"
	"dec/api/internal/email"
	"dec/api/internal/rbac"
	"dec/api/internal/session"
)

const sessionCookie = "dec_session"

type HTTPServer struct {
	service    *Service
	corsOrigin string

	// Assets is nil when object storage is not configured.
	Assets *assets.Service
	// Terminal is nil when the terminal bridge is disabled.
	Terminal http.Handler
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.URL.Path == "/ws/terminal" {
		s.handleTerminal(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "auth":
		s.handleAuth(w, r, parts[2:])
	case "user":
		s.handleUser(w, r, parts[2:])
	case "blog":
		s.handleBlog(w, r, parts[2:])
	case "notes":
		s.handleNotes(w, r, parts[2:])
	case "search":
		s.handleSearch(w, r)
	case "twitch":
		s.handleTwitch(w, r, parts[2:])
	case "youtube":
		s.handleYouTube(w, r, parts[2:])
	case "contact":
		s.handleContact(w, r)
	case "assets":
		s.handleAssets(w, r, parts[2:])
	case "audit":
		s.handleAudit(w, r)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// --- Auth ---

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "session" {
		s.handleSessionProbe(w, r)
		return
	}
	if r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "logout" {
		token := s.sessionToken(r)
		if err := s.service.Logout(r.Context(), token); err != nil {
			writeMappedError(w, err)
			return
		}
		clearSessionCookie(w)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	if r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "login" {
		url, err := s.service.LoginURL(parts[0], r.URL.Query().Get("redirect"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	if r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "callback" {
		s.handleCallback(w, r, parts[0])
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleSessionProbe answers the polling clients do before mirroring
// preferences; both the signed-in and anonymous shapes are 200s.
func (s *HTTPServer) handleSessionProbe(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    sess.UserID,
			"name":  sess.Handle,
			"role":  sess.Role,
			"image": s.service.UserImage(r.Context(), sess.UserID),
		},
	})
}

func (s *HTTPServer) handleCallback(w http.ResponseWriter, r *http.Request, provider string) {
	query := r.URL.Query()
	if query.Get("error") != "" {
		writeError(w, http.StatusUnauthorized, "OAUTH_DENIED", "Provider denied the request", nil)
		return
	}
	sess, redirect, err := s.service.CompleteOAuth(r.Context(), provider, query.Get("state"), query.Get("code"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	setSessionCookie(w, sess.Token, sess.ExpiresAt)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// --- Preferences ---

func (s *HTTPServer) handleUser(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	switch {
	case parts[0] == "preferences" && r.Method == http.MethodGet:
		blob, err := s.service.Preferences(r.Context(), sess.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"preferences": blob})

	case parts[0] == "preferences" && r.Method == http.MethodPost:
		patch, err := decodePreferencePatch(r)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		merged, err := s.service.UpdatePreferences(r.Context(), sess.UserID, patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "preferences": merged})

	case parts[0] == "reset-preferences" && r.Method == http.MethodPost:
		if err := s.service.ResetPreferences(r.Context(), sess.UserID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func decodePreferencePatch(r *http.Request) (PreferencePatch, error) {
	defer r.Body.Close()
	var body struct {
		Preferences *PreferencePatch `json:"preferences"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return PreferencePatch{}, domainError(http.StatusUnprocessableEntity, "INVALID_PREFERENCE", "Unknown preference field", nil)
		}
		return PreferencePatch{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", nil)
	}
	if body.Preferences == nil {
		return PreferencePatch{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Missing preferences object", nil)
	}
	return *body.Preferences, nil
}

// --- Blog ---

func (s *HTTPServer) handleBlog(w http.ResponseWriter, r *http.Request, parts []string) {
	admin := s.isAdmin(r)

	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		posts, err := s.service.ListPosts(r.Context(), admin)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": posts})

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "save":
		sess, ok := s.requireAdmin(w, r)
		if !ok {
			return
		}
		var input SavePostInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		post, err := s.service.SavePost(r.Context(), sess, input)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"post": post})

	case r.Method == http.MethodGet && len(parts) == 1:
		post, err := s.service.GetPost(r.Context(), parts[0], admin, admin)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"post": post})

	case r.Method == http.MethodDelete && len(parts) == 1:
		sess, ok := s.requireAdmin(w, r)
		if !ok {
			return
		}
		if err := s.service.DeletePost(r.Context(), sess, parts[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "history":
		if _, ok := s.requireAdmin(w, r); !ok {
			return
		}
		limit := queryInt(r, "limit", 50)
		history, err := s.service.PostHistory(r.Context(), parts[0], limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})

	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "history":
		if _, ok := s.requireAdmin(w, r); !ok {
			return
		}
		content, err := s.service.PostRevision(r.Context(), parts[0], parts[2])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"markdown": content})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "export":
		result, err := s.service.ExportPost(r.Context(), parts[0], admin)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// --- Notes ---

func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request, parts []string) {
	sess, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}

	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		notes, err := s.service.ListNotes(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": notes})

	case r.Method == http.MethodPost && len(parts) == 0:
		var input SaveNoteInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		note, err := s.service.SaveNote(r.Context(), sess, input)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"note": note})

	case r.Method == http.MethodGet && len(parts) == 1:
		note, err := s.service.GetNote(r.Context(), parts[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"note": note})

	case r.Method == http.MethodPut && len(parts) == 1:
		var input SaveNoteInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		input.ID = parts[0]
		note, err := s.service.SaveNote(r.Context(), sess, input)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"note": note})

	case r.Method == http.MethodDelete && len(parts) == 1:
		if err := s.service.DeleteNote(r.Context(), sess, parts[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// --- Search ---

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "Query parameter q is required", nil)
		return
	}
	response := s.service.SearchContent(
		query,
		r.URL.Query().Get("type"),
		queryInt(r, "limit", 20),
		queryInt(r, "offset", 0),
		s.isAdmin(r),
	)
	writeJSON(w, http.StatusOK, response)
}

// --- Media proxies ---

func (s *HTTPServer) handleTwitch(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet || len(parts) != 1 || parts[0] != "following" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	channels, err := s.service.TwitchFollowing(r.Context(), sess.UserID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (s *HTTPServer) handleYouTube(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet || len(parts) != 1 || parts[0] != "recommendations" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	items, err := s.service.YouTubeRecommendations(r.Context(), sess.UserID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// --- Contact ---

func (s *HTTPServer) handleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	var body struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.Contact(r.Context(), email.ContactData{Name: body.Name, Email: body.Email, Message: body.Message}); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// --- Assets ---

const maxUploadBytes = 25 << 20

func (s *HTTPServer) handleAssets(w http.ResponseWriter, r *http.Request, parts []string) {
	if s.Assets == nil {
		writeError(w, http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Object storage is not configured", nil)
		return
	}

	if r.Method == http.MethodPost && len(parts) == 0 {
		if _, ok := s.requireAdmin(w, r); !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Multipart upload too large or malformed", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Missing file field", nil)
			return
		}
		defer file.Close()
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		upload, err := s.Assets.Put(r.Context(), header.Filename, contentType, header.Size, file)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"asset": upload})
		return
	}

	if r.Method == http.MethodGet && len(parts) > 0 {
		key := strings.Join(parts, "/")
		url, err := s.Assets.PresignedGet(r.Context(), key, 15*time.Minute)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// --- Audit ---

func (s *HTTPServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	events, err := s.service.AuditEvents(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// --- Terminal ---

func (s *HTTPServer) handleTerminal(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	if s.Terminal == nil {
		writeError(w, http.StatusNotFound, "TERMINAL_DISABLED", "Terminal bridge is disabled", nil)
		return
	}
	s.Terminal.ServeHTTP(w, r)
}

// --- Session helpers ---

func (s *HTTPServer) sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := s.sessionToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) (Session, bool) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return Session{}, false
	}
	if !rbac.Can(rbac.Normalize(sess.Role), rbac.ActionAdmin) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return Session{}, false
	}
	return sess, true
}

// isAdmin reports whether the caller holds an admin session, without
// writing an error for anonymous callers.
func (s *HTTPServer) isAdmin(r *http.Request) bool {
	token := s.sessionToken(r)
	if token == "" {
		return false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		return false
	}
	return rbac.Can(rbac.Normalize(sess.Role), rbac.ActionAdmin)
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// --- Middleware and helpers ---

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidState) || errors.Is(err, auth.ErrExpiredState) || errors.Is(err, session.ErrNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
