package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func TestFetchProfileGitHub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 1234, "login": "dec", "name": "Dec", "avatar_url": "https://img.example/a.png"}`))
	}))
	defer srv.Close()

	provider := NewGitHub("cid", "secret", "http://localhost/callback")
	provider.ProfileURL = srv.URL

	profile, err := provider.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "tok-1"})
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if profile.ProviderUserID != "1234" || profile.Handle != "dec" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestFetchProfileTwitchSendsClientID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Client-Id"); got != "twitch-cid" {
			t.Errorf("Client-Id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": "77", "login": "dec_live", "display_name": "Dec"}]}`))
	}))
	defer srv.Close()

	provider := NewTwitch("twitch-cid", "secret", "http://localhost/callback")
	provider.ProfileURL = srv.URL

	profile, err := provider.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "tok-2"})
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if profile.ProviderUserID != "77" || profile.Handle != "dec_live" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestFetchProfileRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := NewGoogle("cid", "secret", "http://localhost/callback")
	provider.ProfileURL = srv.URL

	if _, err := provider.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "bad"}); err == nil {
		t.Fatal("expected error for non-200 profile response")
	}
}

func TestExchangeUsesTokenEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("code"); got != "code-1" {
			t.Errorf("code = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "granted", "token_type": "bearer"}`))
	}))
	defer srv.Close()

	provider := NewGitHub("cid", "secret", "http://localhost/callback")
	provider.Config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}

	token, err := provider.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if token.AccessToken != "granted" {
		t.Fatalf("AccessToken = %q", token.AccessToken)
	}
}

func TestRegistrySkipsUnconfiguredProviders(t *testing.T) {
	registry := NewRegistry(
		NewGitHub("cid", "secret", "http://localhost/callback"),
		NewGoogle("", "", "http://localhost/callback"),
	)

	if _, err := registry.Get("github"); err != nil {
		t.Fatalf("Get(github) error = %v", err)
	}
	if _, err := registry.Get("google"); err == nil {
		t.Fatal("expected unconfigured google to be absent")
	}
	names := registry.Names()
	if len(names) != 1 || names[0] != "github" {
		t.Fatalf("Names() = %v", names)
	}
}
