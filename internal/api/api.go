// Package api defines the JSON request and response shapes shared by the
// server handlers and the HTTP client.
package api

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type SessionResponse struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

type Title struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Synopsis   string `json:"synopsis"`
	Released   int64  `json:"released"`
	Genre      string `json:"genre"`
	Image      string `json:"image,omitempty"`
	Favorited  *bool  `json:"favorited,omitempty"`
	WatchLater *bool  `json:"watchLater,omitempty"`
}

type TitlesResponse struct {
	Page        int     `json:"page"`
	TotalPages  int     `json:"totalPages"`
	HasNextPage bool    `json:"hasNextPage"`
	Titles      []Title `json:"titles"`
}

type RelationEntry struct {
	TitleID   string `json:"title_id"`
	CreatedAt string `json:"created_at"`
}

type RelationListResponse struct {
	Items []RelationEntry `json:"items"`
	Page  int             `json:"page"`
}

type ToggleRequest struct {
	TitleID string `json:"titleId"`
}

type Activity struct {
	ID        string `json:"id"`
	TitleID   string `json:"title_id"`
	Kind      string `json:"kind"`
	Action    string `json:"action"`
	CreatedAt string `json:"created_at"`
}

type ActivitiesResponse struct {
	Items []Activity `json:"items"`
}
