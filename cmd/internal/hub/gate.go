package hub

import (
	"errors"
	"strings"
)

// ErrMissingIdentity is returned when a handshake lacks the user or organization id.
var ErrMissingIdentity = errors.New("hub: missing identity")

// Admit validates the opaque identity pair presented at connection time.
// Both fields must be non-empty after trimming; everything beyond that
// (format, authorization) belongs to external collaborators.
//
// On error, no tenant state has been touched or created.
func Admit(candidateUserID, candidateOrgID string) (userID, orgID string, err error) {
	userID = strings.TrimSpace(candidateUserID)
	orgID = strings.TrimSpace(candidateOrgID)
	if userID == "" || orgID == "" {
		return "", "", ErrMissingIdentity
	}
	return userID, orgID, nil
}
