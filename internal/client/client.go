// Package client is a typed HTTP client for the Cinema Guru API. It
// implements reconcile.RelationService so the reconciler can run against
// a live server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cinemaguru/cinema-guru/internal/api"
	"github.com/cinemaguru/cinema-guru/internal/reconcile"
	"github.com/cinemaguru/cinema-guru/internal/session"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for baseURL authenticating with the given session
// token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func kindPath(kind reconcile.Kind) string {
	if kind == reconcile.WatchLater {
		return "/api/watch-later"
	}
	return "/api/favorites"
}

func (c *Client) List(ctx context.Context, kind reconcile.Kind) ([]string, error) {
	var resp api.RelationListResponse
	if err := c.do(ctx, http.MethodGet, kindPath(kind), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, item.TitleID)
	}
	return out, nil
}

func (c *Client) Add(ctx context.Context, kind reconcile.Kind, titleID string) error {
	body := api.ToggleRequest{TitleID: titleID}
	return c.do(ctx, http.MethodPost, kindPath(kind), &body, nil)
}

func (c *Client) Remove(ctx context.Context, kind reconcile.Kind, titleID string) error {
	path := kindPath(kind) + "/" + url.PathEscape(titleID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Titles fetches one catalog page with the given filters applied.
func (c *Client) Titles(ctx context.Context, page int, query url.Values) (api.TitlesResponse, error) {
	values := url.Values{}
	for key, vals := range query {
		for _, val := range vals {
			values.Add(key, val)
		}
	}
	values.Set("page", strconv.Itoa(max(page, 1)))

	var resp api.TitlesResponse
	err := c.do(ctx, http.MethodGet, "/api/titles?"+values.Encode(), nil, &resp)
	return resp, err
}

func (c *Client) Activities(ctx context.Context, limit int) ([]api.Activity, error) {
	path := "/api/activities"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.ActivitiesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var payload *bytes.Buffer
	if body != nil {
		payload = &bytes.Buffer{}
		if err := json.NewEncoder(payload).Encode(body); err != nil {
			return err
		}
	}

	var req *http.Request
	var err error
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: c.token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
