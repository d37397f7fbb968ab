package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"dec/api/internal/media"
	"dec/api/internal/store"
)

func TestTwitchFollowingWithoutLinkIs404(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "avery", "user")

	rec := f.request(t, http.MethodGet, "/api/twitch/following", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "NOT_LINKED") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTwitchFollowingProxiesLinkedAccount(t *testing.T) {
	f := newFixture(t)
	user, token := f.signIn(t, "avery", "user")
	f.store.linked[user.ID+"/twitch"] = &store.LinkedAccount{
		UserID:         user.ID,
		Provider:       "twitch",
		ProviderUserID: "9000",
	}
	f.media.followingFn = func(_ context.Context, account *store.LinkedAccount) ([]media.TwitchChannel, error) {
		if account.ProviderUserID != "9000" {
			t.Errorf("provider user id = %q", account.ProviderUserID)
		}
		return []media.TwitchChannel{{ID: "1", Login: "dev", Name: "Dev"}}, nil
	}

	rec := f.request(t, http.MethodGet, "/api/twitch/following", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Channels []media.TwitchChannel `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Channels) != 1 || body.Channels[0].Login != "dev" {
		t.Fatalf("channels = %+v", body.Channels)
	}
}

func TestYouTubeStaleTokenMapsToBadGateway(t *testing.T) {
	f := newFixture(t)
	user, token := f.signIn(t, "avery", "user")
	f.store.linked[user.ID+"/google"] = &store.LinkedAccount{
		UserID:         user.ID,
		Provider:       "google",
		ProviderUserID: "g-1",
	}
	f.media.recsFn = func(context.Context, *store.LinkedAccount) ([]media.YouTubeItem, error) {
		return nil, media.ErrUpstreamAuth
	}

	rec := f.request(t, http.MethodGet, "/api/youtube/recommendations", token, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502, body %s", rec.Code, rec.Body.String())
	}
}

func TestMediaRequiresSession(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/twitch/following", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestContactUnconfiguredIs503(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/api/contact", "",
		strings.NewReader(`{"name":"Sam","email":"sam@example.com","message":"hi"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAssetsUnconfiguredIs503(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "avery", "admin")

	rec := f.request(t, http.MethodPost, "/api/assets", token, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestTerminalDisabledIs404(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "avery", "admin")

	rec := f.request(t, http.MethodGet, "/ws/terminal", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTerminalRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "reader", "user")

	rec := f.request(t, http.MethodGet, "/ws/terminal", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAuditIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	_, userToken := f.signIn(t, "reader", "user")

	rec := f.request(t, http.MethodGet, "/api/audit", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
