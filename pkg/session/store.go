// Package session persists the last-known authenticated identity in a
// keyring so it survives process restarts.
package session

import (
	"log/slog"
	"strings"

	"github.com/corvidchat/authkit/pkg/identity"
	"github.com/corvidchat/authkit/pkg/keyring"
)

// Keyring entry names. These are private storage details, not a wire
// contract.
const (
	keySubject      = "auth.subject"
	keyEmail        = "auth.email"
	keyDisplayName  = "auth.display_name"
	keyPhoneNumber  = "auth.phone_number"
	keyAccessToken  = "auth.access_token"
	keyRefreshToken = "auth.refresh_token"
	keyRoles        = "auth.roles"
	keyGroups       = "auth.groups"
)

var allKeys = []string{
	keySubject,
	keyEmail,
	keyDisplayName,
	keyPhoneNumber,
	keyAccessToken,
	keyRefreshToken,
	keyRoles,
	keyGroups,
}

// Store reads and writes the single persisted Identity. A backend failure
// on read degrades to "not authenticated" rather than surfacing an error;
// writes are last-write-wins with no versioning.
type Store struct {
	ring   keyring.Keyring
	logger *slog.Logger
}

// NewStore wraps ring. logger may be nil.
func NewStore(ring keyring.Keyring, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{ring: ring, logger: logger}
}

// Store persists every field of id, replacing any prior value. Optional
// fields that are empty have their entries removed so stale state from a
// previous identity cannot leak through.
func (s *Store) Store(id *identity.Identity) {
	s.set(keySubject, id.Subject)
	s.set(keyAccessToken, id.AccessToken)
	s.setRequired(keyRoles, joinList(id.Roles))

	s.setOptional(keyEmail, id.Email)
	s.setOptional(keyDisplayName, id.DisplayName)
	s.setOptional(keyPhoneNumber, id.PhoneNumber)
	s.setOptional(keyRefreshToken, id.RefreshToken)
	s.setOptional(keyGroups, joinList(id.Groups))
}

// Load returns the persisted Identity, or nil when no complete identity is
// stored. Subject, access token, and the roles entry are required; optional
// fields default to empty when unreadable.
func (s *Store) Load() *identity.Identity {
	subject, ok := s.get(keySubject)
	if !ok {
		return nil
	}
	accessToken, ok := s.get(keyAccessToken)
	if !ok {
		return nil
	}
	roles, ok := s.get(keyRoles)
	if !ok {
		return nil
	}

	id := &identity.Identity{
		Subject:     subject,
		AccessToken: accessToken,
		Roles:       splitList(roles),
	}

	id.Email, _ = s.get(keyEmail)
	id.DisplayName, _ = s.get(keyDisplayName)
	id.PhoneNumber, _ = s.get(keyPhoneNumber)
	id.RefreshToken, _ = s.get(keyRefreshToken)

	groups, _ := s.get(keyGroups)
	id.Groups = splitList(groups)

	return id
}

// Clear removes every persisted field.
func (s *Store) Clear() {
	for _, key := range allKeys {
		if err := s.ring.Delete(key); err != nil {
			s.logger.Warn("failed to clear session entry", "key", key, "error", err)
		}
	}
}

func (s *Store) get(key string) (string, bool) {
	value, err := s.ring.Get(key)
	if err != nil {
		return "", false
	}
	return value, true
}

func (s *Store) set(key, value string) {
	if value == "" {
		// Required fields are validated upstream; an empty value here means
		// the caller persisted an incomplete identity.
		s.logger.Warn("refusing to persist empty required session field", "key", key)
		return
	}
	s.setRequired(key, value)
}

// setRequired writes the entry even when the value is empty so the entry
// stays present (an empty roles list is a valid state).
func (s *Store) setRequired(key, value string) {
	if err := s.ring.Set(key, value); err != nil {
		s.logger.Warn("failed to persist session entry", "key", key, "error", err)
	}
}

func (s *Store) setOptional(key, value string) {
	if value == "" {
		if err := s.ring.Delete(key); err != nil {
			s.logger.Warn("failed to remove session entry", "key", key, "error", err)
		}
		return
	}
	s.setRequired(key, value)
}

// joinList encodes a list as a space-delimited string.
func joinList(values []string) string {
	return strings.Join(values, " ")
}

// splitList decodes a space-delimited list, dropping empty fields and
// duplicates.
func splitList(s string) []string {
	parts := strings.Fields(s)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
