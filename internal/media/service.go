// Package media proxies the signed-in user's Twitch and YouTube data using
// the OAuth tokens stored against their linked accounts.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dec/api/internal/secrets"
	"dec/api/internal/store"
)

// ErrUpstreamAuth means the provider rejected the stored token, usually
// because it expired or the user revoked access.
var ErrUpstreamAuth = errors.New("media: upstream rejected token")

const maxUpstreamBody = 1 << 20

type TwitchChannel struct {
	ID         string    `json:"id"`
	Login      string    `json:"login"`
	Name       string    `json:"name"`
	FollowedAt time.Time `json:"followedAt"`
}

type YouTubeItem struct {
	ChannelID   string    `json:"channelId"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"thumbnail"`
	PublishedAt time.Time `json:"publishedAt"`
}

type Service struct {
	box            *secrets.Box
	client         *http.Client
	twitchClientID string

	// Overridable for tests.
	twitchBaseURL  string
	youtubeBaseURL string
}

func NewService(box *secrets.Box, twitchClientID string) *Service {
	return &Service{
		box:            box,
		client:         &http.Client{Timeout: 10 * time.Second},
		twitchClientID: twitchClientID,
		twitchBaseURL:  "https://api.twitch.tv/helix",
		youtubeBaseURL: "https://www.googleapis.com/youtube/v3",
	}
}

// Following returns the channels the linked Twitch account follows.
func (s *Service) Following(ctx context.Context, account *store.LinkedAccount) ([]TwitchChannel, error) {
	token, err := s.box.Open(account.AccessTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("unseal twitch token: %w", err)
	}

	endpoint := s.twitchBaseURL + "/channels/followed?" + url.Values{
		"user_id": {account.ProviderUserID},
		"first":   {"20"},
	}.Encode()

	var payload struct {
		Data []struct {
			BroadcasterID    string    `json:"broadcaster_id"`
			BroadcasterLogin string    `json:"broadcaster_login"`
			BroadcasterName  string    `json:"broadcaster_name"`
			FollowedAt       time.Time `json:"followed_at"`
		} `json:"data"`
	}
	headers := map[string]string{"Client-Id": s.twitchClientID}
	if err := s.getJSON(ctx, endpoint, token, headers, &payload); err != nil {
		return nil, err
	}

	channels := make([]TwitchChannel, 0, len(payload.Data))
	for _, entry := range payload.Data {
		channels = append(channels, TwitchChannel{
			ID:         entry.BroadcasterID,
			Login:      entry.BroadcasterLogin,
			Name:       entry.BroadcasterName,
			FollowedAt: entry.FollowedAt,
		})
	}
	return channels, nil
}

// Recommendations returns recent channels from the linked Google account's
// YouTube subscriptions, newest activity first as the API orders them.
func (s *Service) Recommendations(ctx context.Context, account *store.LinkedAccount) ([]YouTubeItem, error) {
	token, err := s.box.Open(account.AccessTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("unseal youtube token: %w", err)
	}

	endpoint := s.youtubeBaseURL + "/subscriptions?" + url.Values{
		"part":       {"snippet"},
		"mine":       {"true"},
		"maxResults": {"20"},
		"order":      {"unread"},
	}.Encode()

	var payload struct {
		Items []struct {
			Snippet struct {
				Title       string    `json:"title"`
				PublishedAt time.Time `json:"publishedAt"`
				ResourceID  struct {
					ChannelID string `json:"channelId"`
				} `json:"resourceId"`
				Thumbnails struct {
					Default struct {
						URL string `json:"url"`
					} `json:"default"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := s.getJSON(ctx, endpoint, token, nil, &payload); err != nil {
		return nil, err
	}

	items := make([]YouTubeItem, 0, len(payload.Items))
	for _, entry := range payload.Items {
		items = append(items, YouTubeItem{
			ChannelID:   entry.Snippet.ResourceID.ChannelID,
			Title:       entry.Snippet.Title,
			Thumbnail:   entry.Snippet.Thumbnails.Default.URL,
			PublishedAt: entry.Snippet.PublishedAt,
		})
	}
	return items, nil
}

func (s *Service) getJSON(ctx context.Context, endpoint, token string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("media request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return fmt.Errorf("read media response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUpstreamAuth
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media upstream returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode media response: %w", err)
	}
	return nil
}
