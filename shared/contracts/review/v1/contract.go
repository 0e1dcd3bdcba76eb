// Package v1 defines the revsync review protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeStateSync delivers the full tenant snapshot to a newly admitted connection (server -> client).
	TypeStateSync = "state:sync"

	// TypeStateUpdate submits a partial status/metadata change (client -> server).
	TypeStateUpdate = "state:update"
	// TypeStateUpdated broadcasts an applied status/metadata change to every connection in the tenant,
	// including the sender (server -> tenant).
	TypeStateUpdated = "state:updated"

	// TypeContentUpdate submits a whole-field content overwrite (client -> server).
	TypeContentUpdate = "content:update"
	// TypeContentUpdated broadcasts new content to every other connection in the tenant (server -> others).
	TypeContentUpdated = "content:updated"

	// TypeCursorUpdate submits an ephemeral cursor position (client -> server).
	TypeCursorUpdate = "cursor:update"
	// TypeCursorMoved broadcasts a cursor position to every other connection in the tenant (server -> others).
	TypeCursorMoved = "cursor:moved"

	// TypeUserJoined announces a new presence to the rest of the tenant (server -> others).
	TypeUserJoined = "user:joined"
	// TypeUserLeft announces that a user's last connection closed (server -> others).
	TypeUserLeft = "user:left"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// MaxContentBytes bounds a single content:update payload.
const MaxContentBytes = 256 << 10 // 256 KiB

// Status is the review status enum.
type Status string

// Review statuses (wire-stable).
const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s is a known review status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Rating bounds. The revision rating is a small integer scale.
const (
	MinRating = 0
	MaxRating = 9
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeStateSync,
		TypeStateUpdate,
		TypeStateUpdated,
		TypeContentUpdate,
		TypeContentUpdated,
		TypeCursorUpdate,
		TypeCursorMoved,
		TypeUserJoined,
		TypeUserLeft,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Shared shapes ----

// Revision is the canonical shared record for a tenant.
// lastUpdatedBy / lastUpdatedAt are always stamped by the server.
type Revision struct {
	Status        Status    `json:"status"`
	Rating        int       `json:"rating"`
	Content       string    `json:"content"`
	Comment       string    `json:"comment"`
	LastUpdatedBy string    `json:"lastUpdatedBy,omitempty"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt,omitempty"`
}

// RevisionDelta carries the subset of revision fields touched by a state:update.
// Nil fields were not part of the change.
type RevisionDelta struct {
	Status  *Status `json:"status,omitempty"`
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// Empty reports whether the delta carries no fields at all.
func (d RevisionDelta) Empty() bool {
	return d.Status == nil && d.Rating == nil && d.Comment == nil
}

// HistoryEntry is one row of the tenant's audit timeline, most-recent-first on the wire.
type HistoryEntry struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	Action        string        `json:"action"`
	Timestamp     time.Time     `json:"timestamp"`
	PreviousValue RevisionDelta `json:"previousValue"`
	NewValue      RevisionDelta `json:"newValue"`
}

// ActionStateUpdate is the only action currently recorded in the ledger.
// Content and cursor traffic never produces entries.
const ActionStateUpdate = "state:update"

// ---- Payloads ----

// StateSyncPayload is the full snapshot unicast to a newly admitted connection.
type StateSyncPayload struct {
	Revision    Revision       `json:"revision"`
	History     []HistoryEntry `json:"history"`
	ActiveUsers []string       `json:"activeUsers"`
}

// StateUpdatePayload is a partial status/metadata change. At least one field must be set.
type StateUpdatePayload struct {
	Status  *Status `json:"status,omitempty"`
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// Validate rejects empty and out-of-range updates before they reach the hub.
func (p StateUpdatePayload) Validate() error {
	if p.Status == nil && p.Rating == nil && p.Comment == nil {
		return errors.New("empty update: at least one of status, rating, comment required")
	}
	if p.Status != nil && !ValidStatus(*p.Status) {
		return fmt.Errorf("invalid status: %q", *p.Status)
	}
	if p.Rating != nil && (*p.Rating < MinRating || *p.Rating > MaxRating) {
		return fmt.Errorf("rating out of range [%d,%d]: %d", MinRating, MaxRating, *p.Rating)
	}
	return nil
}

// StateUpdatedPayload echoes an applied change to every connection in the tenant.
type StateUpdatedPayload struct {
	Revision     Revision     `json:"revision"`
	HistoryEntry HistoryEntry `json:"historyEntry"`
	UpdatedBy    string       `json:"updatedBy"`
}

// ContentUpdatePayload overwrites the whole content field (last writer wins).
type ContentUpdatePayload struct {
	Content        string `json:"content"`
	CursorPosition int    `json:"cursorPosition"`
}

// Validate bounds content size and cursor position.
func (p ContentUpdatePayload) Validate() error {
	if len(p.Content) > MaxContentBytes {
		return fmt.Errorf("content too large: max=%d bytes", MaxContentBytes)
	}
	if !utf8.ValidString(p.Content) {
		return errors.New("content is not valid UTF-8")
	}
	if p.CursorPosition < 0 {
		return fmt.Errorf("negative cursor position: %d", p.CursorPosition)
	}
	return nil
}

// ContentUpdatedPayload is broadcast to every other connection in the tenant.
type ContentUpdatedPayload struct {
	Content        string `json:"content"`
	CursorPosition int    `json:"cursorPosition"`
	UpdatedBy      string `json:"updatedBy"`
}

// CursorUpdatePayload is a transient cursor position. Never written into the revision.
type CursorUpdatePayload struct {
	Position int `json:"position"`
}

// Validate rejects negative positions.
func (p CursorUpdatePayload) Validate() error {
	if p.Position < 0 {
		return fmt.Errorf("negative cursor position: %d", p.Position)
	}
	return nil
}

// CursorMovedPayload is broadcast to every other connection in the tenant.
type CursorMovedPayload struct {
	UserID   string `json:"userId"`
	Position int    `json:"position"`
}

// UserJoinedPayload announces a new presence. Sent for every new connection,
// including additional tabs of an already-present user.
type UserJoinedPayload struct {
	UserID      string   `json:"userId"`
	ActiveUsers []string `json:"activeUsers"`
}

// UserLeftPayload announces that a user has no remaining live connections.
type UserLeftPayload struct {
	UserID      string   `json:"userId"`
	ActiveUsers []string `json:"activeUsers"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
