package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstreamHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/did:plc:abc123":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "did:plc:abc123",
			"alsoKnownAs": []string{"at://alice.example"},
			"service": []map[string]string{
				{"id": "#atproto_labeler", "type": "AtprotoLabeler", "serviceEndpoint": "https://labeler.example"},
				{"id": "#atproto_pds", "type": "AtprotoPersonalDataServer", "serviceEndpoint": "https://pds.example/"},
			},
		})
	case "/did:plc:nopds":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "did:plc:nopds",
			"service": []map[string]string{
				{"id": "did:plc:nopds#atproto_pds", "type": "AtprotoPersonalDataServer", "serviceEndpoint": "https://other.example"},
			},
		})
	case "/did:plc:broken":
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	case "/xrpc/app.bsky.actor.getProfile":
		if r.URL.Query().Get("actor") != "did:plc:abc123" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, `{"error":"InvalidRequest","message":"Profile not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"did":"did:plc:abc123","handle":"alice.example","displayName":"Alice","avatar":"https://cdn.example/alice.jpg","description":"hello"}`)
	default:
		http.NotFound(w, r)
	}
}

func testClient(t *testing.T) *Client {
	srv := httptest.NewServer(http.HandlerFunc(upstreamHandler))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.URL+"/")
}

func TestResolvePDS(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := testClient(t)

	pds, err := c.ResolvePDS(ctx, syntax.DID("did:plc:abc123"))
	require.NoError(err)
	assert.Equal("https://pds.example", pds)

	// only the literal "#atproto_pds" ID counts
	_, err = c.ResolvePDS(ctx, syntax.DID("did:plc:nopds"))
	assert.ErrorIs(err, ErrNoPDS)

	_, err = c.ResolvePDS(ctx, syntax.DID("did:plc:missing"))
	assert.ErrorIs(err, ErrDIDNotFound)

	_, err = c.ResolvePDS(ctx, syntax.DID("did:plc:broken"))
	assert.Error(err)
	var se *StatusError
	assert.True(errors.As(err, &se))
	assert.Equal(http.StatusServiceUnavailable, se.StatusCode)
}

func TestPDSEndpoint(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", PDSEndpoint(nil))
	assert.Equal("", PDSEndpoint(&identity.DIDDocument{}))
	assert.Equal("https://pds.example", PDSEndpoint(&identity.DIDDocument{
		Service: []identity.DocService{
			{ID: "#other", ServiceEndpoint: "https://other.example"},
			{ID: "#atproto_pds", ServiceEndpoint: "https://pds.example"},
		},
	}))
}

func TestGetProfile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := testClient(t)

	pv, err := c.GetProfile(ctx, syntax.DID("did:plc:abc123"))
	require.NoError(err)
	assert.Equal("alice.example", pv.Handle)
	require.NotNil(pv.DisplayName)
	assert.Equal("Alice", *pv.DisplayName)
	require.NotNil(pv.Avatar)
	assert.Equal("https://cdn.example/alice.jpg", *pv.Avatar)
	require.NotNil(pv.Description)
	assert.Equal("hello", *pv.Description)

	_, err = c.GetProfile(ctx, syntax.DID("did:plc:other"))
	assert.Error(err)
}

func TestBestEffort(t *testing.T) {
	assert := assert.New(t)

	ok := Attempt("default", func() (string, error) { return "found", nil })
	assert.False(ok.Fallback())
	assert.Equal("found", ok.Value)

	failed := Attempt("default", func() (string, error) { return "ignored", ErrNoPDS })
	assert.True(failed.Fallback())
	assert.Equal("default", failed.Value)
	assert.ErrorIs(failed.Warning, ErrNoPDS)
}
