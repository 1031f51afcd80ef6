// Package directory talks to the club's member-directory bot over HTTP.
// The bot is an external collaborator: failures here must degrade
// gracefully (fallback avatar, sync reported as failed) and never take
// down the caller.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAvatarURL is served whenever the bot cannot supply one.
const DefaultAvatarURL = "https://cdn.discordapp.com/embed/avatars/0.png"

// ErrUnavailable indicates the bot could not be reached or returned an
// unusable response.
var ErrUnavailable = errors.New("directory: bot unavailable")

// Profile is one member as known by the directory.
type Profile struct {
	Tag       string `json:"discordTag"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Status    string `json:"userStatus"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatarUrl"`
}

// Client calls the directory bot's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Avatar returns the avatar URL for a member tag, or DefaultAvatarURL
// when the bot fails or has no avatar on file.
func (c *Client) Avatar(ctx context.Context, tag string) string {
	var res struct {
		Status    string `json:"status"`
		AvatarURL string `json:"avatarUrl"`
	}
	if err := c.get(ctx, "/get-avatar/"+url.PathEscape(tag), &res); err != nil {
		return DefaultAvatarURL
	}
	if res.Status != "success" || res.AvatarURL == "" {
		return DefaultAvatarURL
	}
	return res.AvatarURL
}

// CheckMember reports whether the tag exists on the club server.
func (c *Client) CheckMember(ctx context.Context, tag string) (bool, error) {
	var res struct {
		Exists bool `json:"exists"`
	}
	if err := c.get(ctx, "/check-member/"+url.PathEscape(tag), &res); err != nil {
		return false, err
	}
	return res.Exists, nil
}

// SendCode asks the bot to deliver a verification code to the member and
// returns the member's directory profile.
func (c *Client) SendCode(ctx context.Context, tag, code string) (Profile, error) {
	var res struct {
		Status string `json:"status"`
		Profile
	}
	body := map[string]string{"discordTag": tag, "code": code}
	if err := c.post(ctx, "/send-code", body, &res); err != nil {
		return Profile{}, err
	}
	if res.Status != "success" {
		return Profile{}, ErrUnavailable
	}
	res.Profile.Tag = tag
	return res.Profile, nil
}

// SyncAll fetches every member known to the directory for bulk sync.
func (c *Client) SyncAll(ctx context.Context) ([]Profile, error) {
	var res struct {
		Status  string    `json:"status"`
		Members []Profile `json:"members"`
	}
	if err := c.get(ctx, "/sync-all-members", &res); err != nil {
		return nil, err
	}
	if res.Status != "success" {
		return nil, ErrUnavailable
	}
	return res.Members, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c.do(req, dst)
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
