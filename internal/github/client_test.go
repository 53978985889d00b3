package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func fakeGitHub(t *testing.T, profileEmail string) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("code") != "good-code" {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "gho_test"})
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    12345,
			"login": "u1",
			"name":  "User One",
			"email": profileEmail,
		})
	})
	mux.HandleFunc("GET /user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "u1@example.com", "primary": true, "verified": true},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewWithBase("id", "secret", srv.URL+"/authorize", srv.URL+"/token", srv.URL)
	return srv, client
}

func TestAuthorizeURLUsesConfiguredEndpoint(t *testing.T) {
	srv, client := fakeGitHub(t, "")

	u := client.AuthorizeURL("state-1", "http://localhost/api/auth/callback")
	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	if got, want := parsed.Scheme+"://"+parsed.Host+parsed.Path, srv.URL+"/authorize"; got != want {
		t.Fatalf("endpoint = %q, want %q", got, want)
	}
	q := parsed.Query()
	if q.Get("client_id") != "id" || q.Get("state") != "state-1" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("redirect_uri") != "http://localhost/api/auth/callback" {
		t.Fatalf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestExchangeCode(t *testing.T) {
	_, client := fakeGitHub(t, "u1@example.com")

	token, err := client.ExchangeCode(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if token != "gho_test" {
		t.Fatalf("token = %q", token)
	}
}

func TestExchangeCodeRejectsBadCode(t *testing.T) {
	_, client := fakeGitHub(t, "")

	if _, err := client.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error for rejected code")
	}
}

func TestFetchUserWithProfileEmail(t *testing.T) {
	_, client := fakeGitHub(t, "visible@example.com")

	p, err := client.FetchUser(context.Background(), "gho_test")
	if err != nil {
		t.Fatalf("fetch user: %v", err)
	}
	if p.ID != "12345" || p.Email != "visible@example.com" || p.Name != "User One" {
		t.Fatalf("principal = %+v", p)
	}
}

func TestFetchUserFallsBackToPrimaryEmail(t *testing.T) {
	_, client := fakeGitHub(t, "")

	p, err := client.FetchUser(context.Background(), "gho_test")
	if err != nil {
		t.Fatalf("fetch user: %v", err)
	}
	if p.Email != "u1@example.com" {
		t.Fatalf("email = %q, want primary verified address", p.Email)
	}
}
