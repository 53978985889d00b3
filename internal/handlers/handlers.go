// Package handlers wires HTTP routing and API handlers.
package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cinemaguru/cinema-guru/internal/api"
	"github.com/cinemaguru/cinema-guru/internal/catalog"
	"github.com/cinemaguru/cinema-guru/internal/github"
	"github.com/cinemaguru/cinema-guru/internal/session"
	"github.com/cinemaguru/cinema-guru/internal/store"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute

	defaultActivityLimit = 20
)

type Handler struct {
	store    *store.Store
	engine   *catalog.Engine
	sessions *session.Manager
	identity *github.Client

	redirectURI string
}

type Config struct {
	Store    *store.Store
	Engine   *catalog.Engine
	Sessions *session.Manager
	Identity *github.Client

	// RedirectURI is the OAuth callback URL registered with the identity
	// provider. Empty lets the provider use its configured default.
	RedirectURI string
}

func New(cfg *Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("catalog engine is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("identity client is required")
	}

	return &Handler{
		store:       cfg.Store,
		engine:      cfg.Engine,
		sessions:    cfg.Sessions,
		identity:    cfg.Identity,
		redirectURI: cfg.RedirectURI,
	}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Method(http.MethodGet, "/login", Adapt(h.getLogin))
			r.Method(http.MethodGet, "/callback", Adapt(h.getCallback))
			r.With(h.WithPrincipal).Method(http.MethodGet, "/session", Adapt(h.getSession))
			r.Method(http.MethodPost, "/logout", Adapt(h.postLogout))
		})

		r.With(h.WithPrincipal).Method(http.MethodGet, "/titles", Adapt(h.getTitles))

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Method(http.MethodGet, "/genres", Adapt(h.getGenres))
			r.Method(http.MethodGet, "/activities", Adapt(h.getActivities))

			h.relationRoutes(r, "/favorites", store.KindFavorite)
			h.relationRoutes(r, "/watch-later", store.KindWatchLater)
		})
	})
}

func (h *Handler) relationRoutes(r chi.Router, path, kind string) {
	r.Route(path, func(r chi.Router) {
		r.Method(http.MethodGet, "/", Adapt(h.listRelations(kind)))
		r.Method(http.MethodPost, "/", Adapt(h.postRelation(kind)))
		r.Method(http.MethodDelete, "/{titleId}", Adapt(h.deleteRelation(kind)))
	})
}

func (h *Handler) getLogin(w http.ResponseWriter, r *http.Request) error {
	state, err := randomState()
	if err != nil {
		return internal(err)
	}

	session.SetStateCookie(w, stateCookieName, state, stateCookieTTL)

	http.Redirect(w, r, h.identity.AuthorizeURL(state, h.redirectURI), http.StatusFound)
	return nil
}

func (h *Handler) getCallback(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	state := strings.TrimSpace(r.URL.Query().Get("state"))
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" || cookie.Value != state {
		return badRequest("invalid oauth state")
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		return badRequest("missing code")
	}

	token, err := h.identity.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("oauth exchange failed", slog.Any("err", err))
		return &Error{Status: http.StatusBadGateway, Message: "login failed"}
	}

	principal, err := h.identity.FetchUser(ctx, token)
	if err != nil {
		slog.Warn("oauth user fetch failed", slog.Any("err", err))
		return &Error{Status: http.StatusBadGateway, Message: "login failed"}
	}

	sessionToken, err := h.sessions.Issue(principal)
	if err != nil {
		return internal(err)
	}

	session.SetCookie(w, sessionToken, h.sessions.TTL())
	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) error {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, &api.SessionResponse{Authenticated: false})
		return nil
	}

	writeJSON(w, http.StatusOK, &api.SessionResponse{
		Authenticated: true,
		User:          &api.User{ID: p.ID, Email: p.Email, Name: p.Name},
	})
	return nil
}

func (h *Handler) postLogout(w http.ResponseWriter, r *http.Request) error {
	session.ClearCookie(w)
	writeJSON(w, http.StatusOK, &api.SessionResponse{Authenticated: false})
	return nil
}

func (h *Handler) getTitles(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	spec := catalog.FilterSpec{
		Query:   strings.TrimSpace(r.URL.Query().Get("query")),
		MinYear: intQuery(r, "minYear"),
		MaxYear: intQuery(r, "maxYear"),
		Genres:  splitCSV(r.URL.Query().Get("genres")),
		Page:    pageQuery(r),
	}

	page, err := h.engine.Query(ctx, spec)
	if err != nil {
		slog.Warn("catalog query failed", slog.Any("err", err))
		return internal(err)
	}

	titles := make([]api.Title, 0, len(page.Items))
	for i := range page.Items {
		titles = append(titles, toAPITitle(&page.Items[i]))
	}

	// Personalization only for authenticated callers.
	if p, ok := principalFrom(ctx); ok {
		favorites, err := h.store.RelationIDs(ctx, p.ID, store.KindFavorite)
		if err != nil {
			slog.Warn("load favorites failed", slog.Any("err", err))
			return internal(err)
		}
		watchLater, err := h.store.RelationIDs(ctx, p.ID, store.KindWatchLater)
		if err != nil {
			slog.Warn("load watch later failed", slog.Any("err", err))
			return internal(err)
		}
		for i := range titles {
			fav := favorites[titles[i].ID]
			later := watchLater[titles[i].ID]
			titles[i].Favorited = &fav
			titles[i].WatchLater = &later
		}
	}

	writeJSON(w, http.StatusOK, &api.TitlesResponse{
		Page:        page.Page,
		TotalPages:  page.TotalPages,
		HasNextPage: page.HasNext,
		Titles:      titles,
	})
	return nil
}

func (h *Handler) getGenres(w http.ResponseWriter, r *http.Request) error {
	genres, err := h.store.ListGenres(r.Context())
	if err != nil {
		return internal(err)
	}
	writeJSON(w, http.StatusOK, genres)
	return nil
}

func (h *Handler) listRelations(kind string) HandlerWithErr {
	return func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()
		p, ok := principalFrom(ctx)
		if !ok {
			return unauthorized("unauthorized")
		}

		page := 0
		limit, offset := 0, 0
		if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
			page = pageQuery(r)
			limit = h.engine.PageSize()
			offset = (page - 1) * limit
		}

		rels, err := h.store.ListRelations(ctx, p.ID, kind, limit, offset)
		if err != nil {
			slog.Warn("list relations failed", slog.String("kind", kind), slog.Any("err", err))
			return internal(err)
		}

		items := make([]api.RelationEntry, 0, len(rels))
		for _, rel := range rels {
			items = append(items, api.RelationEntry{
				TitleID:   rel.TitleID,
				CreatedAt: rel.CreatedAt,
			})
		}

		writeJSON(w, http.StatusOK, &api.RelationListResponse{Items: items, Page: page})
		return nil
	}
}

func (h *Handler) postRelation(kind string) HandlerWithErr {
	return func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()

		var req api.ToggleRequest
		if err := decodeJSON(r, &req); err != nil {
			return badRequest("bad request")
		}
		if strings.TrimSpace(req.TitleID) == "" {
			return badRequest("missing titleId")
		}

		p, ok := principalFrom(ctx)
		if !ok {
			return unauthorized("unauthorized")
		}

		exists, err := h.store.TitleExists(ctx, req.TitleID)
		if err != nil {
			return internal(err)
		}
		if !exists {
			return notFound("unknown title")
		}

		present, err := h.store.HasRelation(ctx, p.ID, req.TitleID, kind)
		if err != nil {
			return internal(err)
		}

		if err := h.store.InsertRelation(ctx, p.ID, req.TitleID, kind); err != nil {
			slog.Warn("insert relation failed", slog.String("kind", kind), slog.Any("err", err))
			return internal(err)
		}

		// Idempotent re-adds do not generate activity.
		if !present {
			if err := h.store.InsertActivity(ctx, p.ID, req.TitleID, kind, store.ActionAdded); err != nil {
				slog.Warn("insert activity failed", slog.Any("err", err))
			}
		}

		writeJSON(w, http.StatusOK, &api.MessageResponse{Message: addedMessage(kind)})
		return nil
	}
}

func (h *Handler) deleteRelation(kind string) HandlerWithErr {
	return func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()

		titleID, err := url.PathUnescape(chi.URLParam(r, "titleId"))
		if err != nil || strings.TrimSpace(titleID) == "" {
			return badRequest("missing titleId")
		}

		p, ok := principalFrom(ctx)
		if !ok {
			return unauthorized("unauthorized")
		}

		exists, err := h.store.TitleExists(ctx, titleID)
		if err != nil {
			return internal(err)
		}
		if !exists {
			return notFound("unknown title")
		}

		present, err := h.store.HasRelation(ctx, p.ID, titleID, kind)
		if err != nil {
			return internal(err)
		}

		if err := h.store.DeleteRelation(ctx, p.ID, titleID, kind); err != nil {
			slog.Warn("delete relation failed", slog.String("kind", kind), slog.Any("err", err))
			return internal(err)
		}

		if present {
			if err := h.store.InsertActivity(ctx, p.ID, titleID, kind, store.ActionRemoved); err != nil {
				slog.Warn("insert activity failed", slog.Any("err", err))
			}
		}

		writeJSON(w, http.StatusOK, &api.MessageResponse{Message: removedMessage(kind)})
		return nil
	}
}

func (h *Handler) getActivities(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	p, ok := principalFrom(ctx)
	if !ok {
		return unauthorized("unauthorized")
	}

	limit := defaultActivityLimit
	if val := intQuery(r, "limit"); val != nil && *val > 0 {
		limit = *val
	}

	activities, err := h.store.ListActivities(ctx, p.ID, limit)
	if err != nil {
		slog.Warn("list activities failed", slog.Any("err", err))
		return internal(err)
	}

	items := make([]api.Activity, 0, len(activities))
	for _, act := range activities {
		items = append(items, api.Activity{
			ID:        act.ID,
			TitleID:   act.TitleID,
			Kind:      act.Kind,
			Action:    act.Action,
			CreatedAt: act.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, &api.ActivitiesResponse{Items: items})
	return nil
}

func toAPITitle(t *store.Title) api.Title {
	out := api.Title{
		ID:       t.ID,
		Title:    t.Title,
		Synopsis: t.Synopsis,
		Released: t.Released,
		Genre:    t.Genre,
	}
	if t.Image.Valid {
		out.Image = t.Image.V
	}
	return out
}

func addedMessage(kind string) string {
	if kind == store.KindWatchLater {
		return "Added to watch later"
	}
	return "Favorite added"
}

func removedMessage(kind string) string {
	if kind == store.KindWatchLater {
		return "Removed from watch later"
	}
	return "Favorite removed"
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
