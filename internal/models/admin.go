package models

import (
	"sort"
	"strings"
	"time"
)

// User is an account as reported by the backend.
type User struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user may access the admin console.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// FullName joins the first and last name for display.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Report is a user-filed issue report.
type Report struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	User        User      `json:"user"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const (
	ReportStatusOpen     = "open"
	ReportStatusResolved = "resolved"
)

// Model is an assistant model registered with the backend. At most one model
// is active at a time; activation is an admin operation.
type Model struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

func modelTimestamp(m Model) time.Time {
	if !m.CreatedAt.IsZero() {
		return m.CreatedAt
	}
	return m.UpdatedAt
}

// SortModels orders models for the admin table: active ones first, then
// newest first, with the ID as a deterministic tie-break.
func SortModels(models []Model) {
	sort.SliceStable(models, func(i, j int) bool {
		a, b := models[i], models[j]
		if a.Active != b.Active {
			return a.Active
		}
		at, bt := modelTimestamp(a), modelTimestamp(b)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.ID > b.ID
	})
}
