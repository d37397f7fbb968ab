// Package oauth wraps the authorization code flow for the sign-in
// providers. Each provider knows how to turn an access token into a
// normalized profile.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/twitch"
)

// Profile is the provider-independent identity extracted from a userinfo
// call.
type Profile struct {
	ProviderUserID string
	Handle         string
	Name           string
	Email          string
	AvatarURL      string
}

type Provider struct {
	Name   string
	Config *oauth2.Config

	// ProfileURL is overridable so tests can point at a local server.
	ProfileURL string

	parse   func(body []byte) (Profile, error)
	headers map[string]string
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange %s code: %w", p.Name, err)
	}
	return token, nil
}

func (p *Provider) FetchProfile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProfileURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build %s profile request: %w", p.Name, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")
	for key, value := range p.headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch %s profile: %w", p.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("read %s profile: %w", p.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%s profile returned status %d", p.Name, resp.StatusCode)
	}

	profile, err := p.parse(body)
	if err != nil {
		return Profile{}, fmt.Errorf("parse %s profile: %w", p.Name, err)
	}
	if profile.ProviderUserID == "" {
		return Profile{}, fmt.Errorf("%s profile missing user id", p.Name)
	}
	return profile, nil
}

func NewGitHub(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "github",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		ProfileURL: "https://api.github.com/user",
		parse:      parseGitHubProfile,
	}
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email", "https://www.googleapis.com/auth/youtube.readonly"},
			Endpoint:     google.Endpoint,
		},
		ProfileURL: "https://openidconnect.googleapis.com/v1/userinfo",
		parse:      parseGoogleProfile,
	}
}

func NewTwitch(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "twitch",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"user:read:email", "user:read:follows"},
			Endpoint:     twitch.Endpoint,
		},
		ProfileURL: "https://api.twitch.tv/helix/users",
		parse:      parseTwitchProfile,
		// Helix requires the application client id alongside the bearer token.
		headers: map[string]string{"Client-Id": clientID},
	}
}

func parseGitHubProfile(body []byte) (Profile, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Profile{}, err
	}
	return Profile{
		ProviderUserID: strconv.FormatInt(payload.ID, 10),
		Handle:         payload.Login,
		Name:           payload.Name,
		Email:          payload.Email,
		AvatarURL:      payload.AvatarURL,
	}, nil
}

func parseGoogleProfile(body []byte) (Profile, error) {
	var payload struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Profile{}, err
	}
	handle := payload.Email
	if handle == "" {
		handle = payload.Sub
	}
	return Profile{
		ProviderUserID: payload.Sub,
		Handle:         handle,
		Name:           payload.Name,
		Email:          payload.Email,
		AvatarURL:      payload.Picture,
	}, nil
}

func parseTwitchProfile(body []byte) (Profile, error) {
	var payload struct {
		Data []struct {
			ID              string `json:"id"`
			Login           string `json:"login"`
			DisplayName     string `json:"display_name"`
			Email           string `json:"email"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Profile{}, err
	}
	if len(payload.Data) == 0 {
		return Profile{}, fmt.Errorf("empty data array")
	}
	user := payload.Data[0]
	return Profile{
		ProviderUserID: user.ID,
		Handle:         user.Login,
		Name:           user.DisplayName,
		Email:          user.Email,
		AvatarURL:      user.ProfileImageURL,
	}, nil
}
