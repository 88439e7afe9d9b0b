package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/atproto/auth/oauth"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

var ErrNotFound = errors.New("not found")

// AuthStore is an in-process implementation of [oauth.ClientAuthStore], for use in development and demos.
//
// Pending auth requests live in a [TTLMap] and are dropped after the TTL (lazily, on writes). Sessions are keyed by account DID only: the sessionID arguments are ignored, so a new login for an account replaces any earlier session. Everything is lost when the process restarts.
type AuthStore struct {
	Requests *TTLMap[oauth.AuthRequestData]
	Sessions *RecordMap[oauth.ClientSessionData]
}

var _ oauth.ClientAuthStore = (*AuthStore)(nil)

func NewAuthStore(stateTTL time.Duration) *AuthStore {
	return &AuthStore{
		Requests: NewTTLMap[oauth.AuthRequestData](stateTTL),
		Sessions: NewRecordMap[oauth.ClientSessionData](),
	}
}

func (s *AuthStore) GetSession(ctx context.Context, did syntax.DID, sessionID string) (*oauth.ClientSessionData, error) {
	sess, ok := s.Sessions.Get(did.String())
	if !ok {
		return nil, fmt.Errorf("session for %s: %w", did, ErrNotFound)
	}
	return &sess, nil
}

func (s *AuthStore) SaveSession(ctx context.Context, sess oauth.ClientSessionData) error {
	s.Sessions.Set(sess.AccountDID.String(), sess)
	storedSessions.Set(float64(s.Sessions.Len()))
	return nil
}

func (s *AuthStore) DeleteSession(ctx context.Context, did syntax.DID, sessionID string) error {
	s.Sessions.Delete(did.String())
	storedSessions.Set(float64(s.Sessions.Len()))
	return nil
}

// HasSession reports whether any session is stored for the account.
func (s *AuthStore) HasSession(did syntax.DID) bool {
	_, ok := s.Sessions.Get(did.String())
	return ok
}

func (s *AuthStore) GetAuthRequestInfo(ctx context.Context, state string) (*oauth.AuthRequestData, error) {
	info, ok := s.Requests.Get(state)
	if !ok {
		return nil, fmt.Errorf("auth request info for state %q: %w", state, ErrNotFound)
	}
	return &info, nil
}

func (s *AuthStore) SaveAuthRequestInfo(ctx context.Context, info oauth.AuthRequestData) error {
	if info.State == "" {
		return fmt.Errorf("auth request info missing state")
	}
	s.Requests.Set(info.State, info)
	pendingAuthRequests.Set(float64(s.Requests.Len()))
	return nil
}

func (s *AuthStore) DeleteAuthRequestInfo(ctx context.Context, state string) error {
	s.Requests.Delete(state)
	pendingAuthRequests.Set(float64(s.Requests.Len()))
	return nil
}
