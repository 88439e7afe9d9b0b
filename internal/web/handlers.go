package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	lexutil "github.com/bluesky-social/indigo/lex/util"

	"github.com/bluesky-social/bsky-signin-demo/internal/lookup"

	"github.com/flosch/pongo2/v6"
	"github.com/labstack/echo/v4"
)

var (
	nsidDescribeRepo = syntax.NSID("com.atproto.repo.describeRepo")
	nsidCreateRecord = syntax.NSID("com.atproto.repo.createRecord")
	nsidFeedPost     = syntax.NSID("app.bsky.feed.post")
)

var homeNotices = map[string]string{
	"empty":           "Post text cannot be empty.",
	"session_expired": "Your session has expired. Please sign in again.",
}

func (srv *Server) WebHome(c echo.Context) error {
	data := pongo2.Context{}
	if notice, ok := homeNotices[c.QueryParam("error")]; ok {
		data["notice"] = notice
	}

	p, ok := srv.currentProfile(c)
	if !ok {
		return c.Render(http.StatusOK, "signin.html", data)
	}

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	data["profile"] = p.view()
	data["profileJSON"] = string(b)
	return c.Render(http.StatusOK, "home.html", data)
}

func (srv *Server) WebLogin(c echo.Context) error {
	ctx := c.Request().Context()

	handle := strings.TrimSpace(c.FormValue("handle"))
	if handle == "" {
		loginsStarted.WithLabelValues("invalid").Inc()
		return &PageError{
			Status: http.StatusBadRequest,
			Title:  "Error",
			Err:    &ValidationError{Field: "handle", Message: "Handle is required"},
		}
	}

	redirectURL, err := srv.Auth.StartAuthFlow(ctx, handle)
	if err != nil {
		loginsStarted.WithLabelValues("error").Inc()
		slog.Warn("failed to start OAuth flow", "handle", handle, "err", err)
		return authErrorPage(http.StatusInternalServerError, &UpstreamError{Op: "start auth flow", Err: err}, false)
	}

	loginsStarted.WithLabelValues("ok").Inc()
	return c.Redirect(http.StatusFound, redirectURL)
}

func (srv *Server) OAuthCallback(c echo.Context) error {
	ctx := c.Request().Context()

	sess, err := srv.Auth.ProcessCallback(ctx, c.QueryParams())
	if err != nil {
		callbacksProcessed.WithLabelValues("error").Inc()
		slog.Error("failed processing OAuth callback", "err", err)
		return authErrorPage(http.StatusInternalServerError, &UpstreamError{Op: "process callback", Err: err}, true)
	}
	did := sess.AccountDID()

	// handle resolution is best-effort: the raw DID stands in for anything which can't be found
	pds := lookup.Attempt("", func() (string, error) {
		return srv.Lookup.ResolvePDS(ctx, did)
	})
	if pds.Fallback() {
		profileFallbacks.WithLabelValues("pds").Inc()
		slog.Warn("could not resolve PDS for account", "did", did, "err", pds.Warning)
	}

	handle := did.String()
	if pds.Value != "" {
		desc := lookup.Attempt(did.String(), func() (string, error) {
			var out comatproto.RepoDescribeRepo_Output
			if err := sess.Get(ctx, pds.Value, nsidDescribeRepo, map[string]any{"repo": did.String()}, &out); err != nil {
				return "", err
			}
			if out.Handle == "" {
				return did.String(), nil
			}
			return out.Handle, nil
		})
		if desc.Fallback() {
			profileFallbacks.WithLabelValues("describe_repo").Inc()
			slog.Warn("could not describe account repo", "did", did, "pds", pds.Value, "err", desc.Warning)
		}
		handle = desc.Value
	}

	pv := lookup.Attempt[*appbsky.ActorDefs_ProfileViewDetailed](nil, func() (*appbsky.ActorDefs_ProfileViewDetailed, error) {
		return srv.Lookup.GetProfile(ctx, did)
	})
	if pv.Fallback() {
		profileFallbacks.WithLabelValues("profile").Inc()
		slog.Warn("could not fetch public profile", "did", did, "err", pv.Warning)
	}

	p := newProfile(did, handle, pv.Value, srv.Now())
	srv.Profiles.Set(p.DID, p)

	if err := srv.bindSession(c, did); err != nil {
		callbacksProcessed.WithLabelValues("error").Inc()
		return authErrorPage(http.StatusInternalServerError, fmt.Errorf("saving browser session: %w", err), true)
	}

	callbacksProcessed.WithLabelValues("ok").Inc()
	slog.Info("account signed in", "did", did, "handle", p.Handle)
	return c.Redirect(http.StatusFound, "/")
}

func (srv *Server) WebPost(c echo.Context) error {
	ctx := c.Request().Context()

	did, ok := srv.sessionDID(c)
	if !ok {
		return redirectHome(c, nil)
	}

	text := strings.TrimSpace(c.FormValue("text"))
	if text == "" {
		postsCreated.WithLabelValues("invalid").Inc()
		return redirectHome(c, &ValidationError{Field: "text", Message: "Post text is required", Marker: "empty"})
	}

	if _, ok := srv.Profiles.Get(did.String()); !ok {
		return redirectHome(c, nil)
	}

	sess, err := srv.Auth.ResumeSession(ctx, did)
	if err != nil {
		postsCreated.WithLabelValues("error").Inc()
		slog.Error("failed to resume OAuth session", "did", did, "err", err)
		return postErrorPage(&UpstreamError{Op: "resume session", Err: err})
	}
	if sess == nil {
		postsCreated.WithLabelValues("expired").Inc()
		return redirectHome(c, ErrSessionExpired)
	}

	pds := sess.HostURL()
	if pds == "" {
		pds, err = srv.Lookup.ResolvePDS(ctx, did)
		if err != nil {
			postsCreated.WithLabelValues("error").Inc()
			slog.Error("failed to resolve PDS for post", "did", did, "err", err)
			return postErrorPage(&UpstreamError{Op: "resolve PDS", Err: err})
		}
	}

	post := appbsky.FeedPost{
		LexiconTypeID: nsidFeedPost.String(),
		Text:          text,
		CreatedAt:     srv.Now().UTC().Format(isoMillisLayout),
	}
	body := comatproto.RepoCreateRecord_Input{
		Repo:       did.String(),
		Collection: nsidFeedPost.String(),
		Record:     &lexutil.LexiconTypeDecoder{Val: &post},
	}

	var out json.RawMessage
	if err := sess.Post(ctx, pds, nsidCreateRecord, &body, &out); err != nil {
		postsCreated.WithLabelValues("error").Inc()
		slog.Error("failed to create post", "did", did, "pds", pds, "err", err)
		return postErrorPage(&UpstreamError{Op: "create record", Err: err})
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(out)
	}

	postsCreated.WithLabelValues("ok").Inc()
	slog.Info("post created", "did", did)
	return c.Render(http.StatusOK, "post_success.html", pongo2.Context{
		"text":     text,
		"response": pretty.String(),
	})
}

func (srv *Server) WebLogout(c echo.Context) error {
	ctx := c.Request().Context()

	did, ok := srv.sessionDID(c)
	if ok {
		if err := srv.Auth.DeleteSession(ctx, did); err != nil {
			slog.Warn("failed to delete OAuth session", "did", did, "err", err)
		}
		srv.Profiles.Delete(did.String())
		if err := srv.destroySession(c); err != nil {
			slog.Warn("failed to clear browser session", "did", did, "err", err)
		}
		slog.Info("account signed out", "did", did)
	}
	return redirectHome(c, nil)
}

type errorBody struct {
	Error string `json:"error"`
}

func (srv *Server) APIUser(c echo.Context) error {
	did, ok := srv.sessionDID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "Not authenticated"})
	}
	p, ok := srv.Profiles.Get(did.String())
	if !ok {
		return c.JSON(http.StatusOK, errorBody{Error: "User not found"})
	}
	return c.JSON(http.StatusOK, p)
}

func (srv *Server) ClientMetadata(c echo.Context) error {
	meta, err := srv.Auth.ClientMetadata()
	if err != nil {
		return err
	}
	if meta == nil {
		return echo.NewHTTPError(http.StatusNotFound, "client metadata is only published for public clients")
	}
	return c.JSON(http.StatusOK, meta)
}
