package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultDirectoryURL = "https://plc.directory"
	DefaultPublicAPIURL = "https://public.api.bsky.app"

	// Service entry ID of an account's PDS in its DID document. Matched literally.
	PDSServiceID = "#atproto_pds"
)

var (
	ErrDIDNotFound = errors.New("DID not found")
	ErrNoPDS       = errors.New("DID document has no atproto PDS service")
)

// Client for the two unauthenticated lookups the sign-in flow needs: DID documents from the public directory, and profiles from the public AppView API.
//
// There is no caching and no retry; every call goes out over the network.
type Client struct {
	HTTPClient *http.Client

	// method, hostname, and optional port of the DID directory; no trailing slash
	DirectoryURL string

	// method, hostname, and optional port of the public API host; no trailing slash
	PublicAPIURL string

	UserAgent string
}

func NewClient(directoryURL, publicAPIURL string) *Client {
	return &Client{
		HTTPClient:   NewHTTPClient(),
		DirectoryURL: strings.TrimSuffix(directoryURL, "/"),
		PublicAPIURL: strings.TrimSuffix(publicAPIURL, "/"),
		UserAgent:    "bsky-signin-demo",
	}
}

// NewHTTPClient returns a client with tracing instrumentation, and without retries or a client-level timeout. Request contexts bound how long calls can take.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, URL: u}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed parsing JSON response: %w", err)
	}
	return nil
}

// StatusError is returned for any non-200 upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// ResolveDID fetches the DID document for the account from the directory.
func (c *Client) ResolveDID(ctx context.Context, did syntax.DID) (*identity.DIDDocument, error) {
	var doc identity.DIDDocument
	err := c.get(ctx, c.DirectoryURL+"/"+did.String(), &doc)
	lookupRequests.WithLabelValues("did", resultLabel(err)).Inc()
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrDIDNotFound, did)
		}
		return nil, fmt.Errorf("failed to resolve DID %s: %w", did, err)
	}
	return &doc, nil
}

// PDSEndpoint returns the service endpoint of the atproto PDS entry in the document, or an empty string.
func PDSEndpoint(doc *identity.DIDDocument) string {
	if doc == nil {
		return ""
	}
	for _, svc := range doc.Service {
		if svc.ID == PDSServiceID {
			return svc.ServiceEndpoint
		}
	}
	return ""
}

// ResolvePDS resolves the DID document and returns the account's PDS URL, or [ErrNoPDS].
func (c *Client) ResolvePDS(ctx context.Context, did syntax.DID) (string, error) {
	doc, err := c.ResolveDID(ctx, did)
	if err != nil {
		return "", err
	}
	pds := PDSEndpoint(doc)
	if pds == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPDS, did)
	}
	return strings.TrimSuffix(pds, "/"), nil
}

// GetProfile fetches the public profile view for an account (app.bsky.actor.getProfile), without auth.
func (c *Client) GetProfile(ctx context.Context, did syntax.DID) (*appbsky.ActorDefs_ProfileViewDetailed, error) {
	params := url.Values{}
	params.Set("actor", did.String())
	u := c.PublicAPIURL + "/xrpc/app.bsky.actor.getProfile?" + params.Encode()

	var pv appbsky.ActorDefs_ProfileViewDetailed
	err := c.get(ctx, u, &pv)
	lookupRequests.WithLabelValues("profile", resultLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile for %s: %w", did, err)
	}
	return &pv, nil
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
