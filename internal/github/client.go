// Package github exchanges a GitHub OAuth login for an authenticated
// principal record.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cinemaguru/cinema-guru/internal/session"
)

const (
	authorizeURL = "https://github.com/login/oauth/authorize"
	tokenURL     = "https://github.com/login/oauth/access_token"
	apiBase      = "https://api.github.com"
)

type Client struct {
	clientID     string
	clientSecret string
	authorizeURL string
	tokenURL     string
	apiBase      string
	http         *http.Client
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type emailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func New(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		authorizeURL: authorizeURL,
		tokenURL:     tokenURL,
		apiBase:      apiBase,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewWithBase overrides the GitHub endpoints, for tests.
func NewWithBase(clientID, clientSecret, authorizeEndpoint, tokenEndpoint, apiEndpoint string) *Client {
	c := New(clientID, clientSecret)
	c.authorizeURL = authorizeEndpoint
	c.tokenURL = tokenEndpoint
	c.apiBase = apiEndpoint
	return c
}

// AuthorizeURL is where the login flow sends the browser.
func (c *Client) AuthorizeURL(state, redirectURI string) string {
	values := url.Values{}
	values.Set("client_id", c.clientID)
	values.Set("scope", "read:user user:email")
	values.Set("state", state)
	if redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	return c.authorizeURL + "?" + values.Encode()
}

// ExchangeCode trades the callback code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", errors.New("missing code")
	}

	values := url.Values{}
	values.Set("client_id", c.clientID)
	values.Set("client_secret", c.clientSecret)
	values.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.Error != "" {
		return "", fmt.Errorf("token exchange failed: %s", tok.Error)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token exchange returned no access token")
	}
	return tok.AccessToken, nil
}

// FetchUser resolves the authenticated principal. When the profile hides
// its email, the primary verified address is taken from /user/emails.
func (c *Client) FetchUser(ctx context.Context, token string) (session.Principal, error) {
	var user userResponse
	if err := c.getJSON(ctx, token, "/user", &user); err != nil {
		return session.Principal{}, err
	}
	if user.ID == 0 {
		return session.Principal{}, errors.New("github user has no id")
	}

	email := strings.TrimSpace(user.Email)
	if email == "" {
		var emails []emailResponse
		if err := c.getJSON(ctx, token, "/user/emails", &emails); err != nil {
			return session.Principal{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
		if email == "" && len(emails) > 0 {
			email = emails[0].Email
		}
	}

	name := strings.TrimSpace(user.Name)
	if name == "" {
		name = user.Login
	}

	return session.Principal{
		ID:    strconv.FormatInt(user.ID, 10),
		Email: email,
		Name:  name,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode github %s: %w", path, err)
	}
	return nil
}
