package store

import (
	"context"
	"testing"
	"time"

	"github.com/bluesky-social/indigo/atproto/auth/oauth"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthStoreSessions(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s := NewAuthStore(DefaultStateTTL)
	did := syntax.DID("did:plc:abc123")

	_, err := s.GetSession(ctx, did, "")
	assert.ErrorIs(err, ErrNotFound)
	assert.False(s.HasSession(did))

	require.NoError(s.SaveSession(ctx, oauth.ClientSessionData{
		AccountDID:  did,
		SessionID:   "first",
		AccessToken: "access1",
	}))
	assert.True(s.HasSession(did))

	// session ID is ignored on lookup
	sess, err := s.GetSession(ctx, did, "something-else")
	require.NoError(err)
	assert.Equal("access1", sess.AccessToken)

	// a second login for the same account replaces the first
	require.NoError(s.SaveSession(ctx, oauth.ClientSessionData{
		AccountDID:  did,
		SessionID:   "second",
		AccessToken: "access2",
	}))
	sess, err = s.GetSession(ctx, did, "first")
	require.NoError(err)
	assert.Equal("access2", sess.AccessToken)
	assert.Equal(1, s.Sessions.Len())

	require.NoError(s.DeleteSession(ctx, did, ""))
	_, err = s.GetSession(ctx, did, "")
	assert.ErrorIs(err, ErrNotFound)

	// deleting again is fine
	assert.NoError(s.DeleteSession(ctx, did, ""))
}

func TestAuthStoreRequests(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewAuthStore(DefaultStateTTL)
	s.Requests.Now = clock.Now

	assert.Error(s.SaveAuthRequestInfo(ctx, oauth.AuthRequestData{}))

	require.NoError(s.SaveAuthRequestInfo(ctx, oauth.AuthRequestData{State: "state-a"}))
	info, err := s.GetAuthRequestInfo(ctx, "state-a")
	require.NoError(err)
	assert.Equal("state-a", info.State)

	_, err = s.GetAuthRequestInfo(ctx, "state-unknown")
	assert.ErrorIs(err, ErrNotFound)

	// abandoned handshake is swept by a later login
	clock.Advance(DefaultStateTTL + time.Minute)
	require.NoError(s.SaveAuthRequestInfo(ctx, oauth.AuthRequestData{State: "state-b"}))
	_, err = s.GetAuthRequestInfo(ctx, "state-a")
	assert.ErrorIs(err, ErrNotFound)

	require.NoError(s.DeleteAuthRequestInfo(ctx, "state-b"))
	_, err = s.GetAuthRequestInfo(ctx, "state-b")
	assert.ErrorIs(err, ErrNotFound)
	assert.NoError(s.DeleteAuthRequestInfo(ctx, "state-b"))
}

func TestRecordMap(t *testing.T) {
	assert := assert.New(t)

	m := NewRecordMap[int]()
	_, ok := m.Get("a")
	assert.False(ok)

	m.Set("a", 1)
	m.Set("b", 2)
	v, ok := m.Get("a")
	assert.True(ok)
	assert.Equal(1, v)
	assert.Equal(2, m.Len())

	m.Delete("a")
	m.Delete("missing")
	_, ok = m.Get("a")
	assert.False(ok)
	assert.Equal(1, m.Len())
}
