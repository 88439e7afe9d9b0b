package authclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bluesky-social/indigo/atproto/auth/oauth"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/bluesky-social/bsky-signin-demo/internal/store"
)

var DefaultScopes = []string{"atproto", "transition:generic"}

// Session is an authenticated OAuth session for a single account.
//
// Requests made through Get and Post are signed by the session (DPoP-bound access token, with nonce handling and token refresh done by the OAuth library).
type Session interface {
	AccountDID() syntax.DID

	// PDS host URL cached on the session. May be empty.
	HostURL() string

	// Get calls an XRPC query endpoint. If host is empty the session's own host is used.
	Get(ctx context.Context, host string, endpoint syntax.NSID, params map[string]any, out any) error

	// Post calls an XRPC procedure endpoint with a JSON body. If host is empty the session's own host is used.
	Post(ctx context.Context, host string, endpoint syntax.NSID, body any, out any) error
}

// Client is a thin wrapper around [oauth.ClientApp], narrowed to the operations the web server needs.
type Client struct {
	App   *oauth.ClientApp
	Store *store.AuthStore

	// public hostname of this service; empty in localhost dev mode
	Hostname string
}

// NewConfig returns a localhost (development) client config if hostname is empty, or a public web client config otherwise.
func NewConfig(hostname, bind string, scopes []string) oauth.ClientConfig {
	if hostname == "" {
		port := bind
		if i := strings.LastIndex(bind, ":"); i >= 0 {
			port = bind[i:]
		}
		return oauth.NewLocalhostConfig(
			fmt.Sprintf("http://127.0.0.1%s/oauth/callback", port),
			scopes,
		)
	}
	return oauth.NewPublicConfig(
		fmt.Sprintf("https://%s/oauth/client-metadata.json", hostname),
		fmt.Sprintf("https://%s/oauth/callback", hostname),
		scopes,
	)
}

func NewClient(config *oauth.ClientConfig, authStore *store.AuthStore, hostname string) *Client {
	return &Client{
		App:      oauth.NewClientApp(config, authStore),
		Store:    authStore,
		Hostname: hostname,
	}
}

// StartAuthFlow resolves the identifier (handle or DID), sends the auth request to the account's authorization server, and returns the URL to redirect the browser to.
func (c *Client) StartAuthFlow(ctx context.Context, identifier string) (string, error) {
	return c.App.StartAuthFlow(ctx, identifier)
}

// ProcessCallback verifies the callback query parameters, completes the token exchange, and returns the new session.
func (c *Client) ProcessCallback(ctx context.Context, params url.Values) (Session, error) {
	data, err := c.App.ProcessCallback(ctx, params)
	if err != nil {
		return nil, err
	}
	sess, err := c.App.ResumeSession(ctx, data.AccountDID, data.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading new session: %w", err)
	}
	return &oauthSession{sess: sess}, nil
}

// ResumeSession restores the stored session for an account. Returns a nil Session and nil error if there is no stored session.
func (c *Client) ResumeSession(ctx context.Context, did syntax.DID) (Session, error) {
	if !c.Store.HasSession(did) {
		return nil, nil
	}
	sess, err := c.App.ResumeSession(ctx, did, "")
	if err != nil {
		return nil, err
	}
	return &oauthSession{sess: sess}, nil
}

func (c *Client) DeleteSession(ctx context.Context, did syntax.DID) error {
	return c.App.Store.DeleteSession(ctx, did, "")
}

// ClientMetadata returns the client metadata document, or nil in localhost mode (where the metadata is implied by the client_id).
func (c *Client) ClientMetadata() (*oauth.ClientMetadata, error) {
	if c.Hostname == "" {
		return nil, nil
	}
	meta := c.App.Config.ClientMetadata()
	name := "Bluesky Sign-In Demo"
	uri := fmt.Sprintf("https://%s", c.Hostname)
	meta.ClientName = &name
	meta.ClientURI = &uri

	// internal consistency check
	if err := meta.Validate(c.App.Config.ClientID); err != nil {
		slog.Error("validating client metadata", "err", err)
		return nil, err
	}
	return &meta, nil
}

type oauthSession struct {
	sess *oauth.ClientSession
}

func (s *oauthSession) AccountDID() syntax.DID {
	return s.sess.Data.AccountDID
}

func (s *oauthSession) HostURL() string {
	return s.sess.Data.HostURL
}

func (s *oauthSession) Get(ctx context.Context, host string, endpoint syntax.NSID, params map[string]any, out any) error {
	c := s.sess.APIClient()
	if host != "" {
		c.Host = host
	}
	return c.Get(ctx, endpoint, params, out)
}

func (s *oauthSession) Post(ctx context.Context, host string, endpoint syntax.NSID, body any, out any) error {
	c := s.sess.APIClient()
	if host != "" {
		c.Host = host
	}
	return c.Post(ctx, endpoint, body, out)
}
