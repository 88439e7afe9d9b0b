package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/auth/oauth"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/bluesky-social/bsky-signin-demo/internal/authclient"
	"github.com/bluesky-social/bsky-signin-demo/internal/store"

	"github.com/flosch/pongo2/v6"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// AuthClient is the OAuth client capability used by the route layer. Implemented by [authclient.Client].
type AuthClient interface {
	StartAuthFlow(ctx context.Context, identifier string) (string, error)
	ProcessCallback(ctx context.Context, params url.Values) (authclient.Session, error)
	// returns nil Session and nil error if there is no stored session for the account
	ResumeSession(ctx context.Context, did syntax.DID) (authclient.Session, error)
	DeleteSession(ctx context.Context, did syntax.DID) error
	ClientMetadata() (*oauth.ClientMetadata, error)
}

// Resolver does the unauthenticated lookups. Implemented by [lookup.Client].
type Resolver interface {
	ResolvePDS(ctx context.Context, did syntax.DID) (string, error)
	GetProfile(ctx context.Context, did syntax.DID) (*appbsky.ActorDefs_ProfileViewDetailed, error)
}

const (
	sessionCookieName = "bsky-signin"
	sessionMaxAge     = 24 * time.Hour
)

type Config struct {
	Bind          string
	SessionSecret string

	// if set, templates are re-read from this directory on every request
	TemplateDir string

	// where HTTP request metrics get registered; defaults to the global prometheus registerer
	MetricsRegisterer prometheus.Registerer
}

type Server struct {
	Auth     AuthClient
	Lookup   Resolver
	Profiles *store.RecordMap[Profile]
	Cookies  *sessions.CookieStore

	// clock for profile and post timestamps
	Now func() time.Time

	echo  *echo.Echo
	httpd *http.Server
}

func NewServer(config Config, auth AuthClient, resolver Resolver, profiles *store.RecordMap[Profile]) (*Server, error) {
	if config.SessionSecret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	renderer, err := NewRenderer(config.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	if config.MetricsRegisterer == nil {
		config.MetricsRegisterer = prometheus.DefaultRegisterer
	}

	cookies := sessions.NewCookieStore([]byte(config.SessionSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		// plain-HTTP localhost development
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		Auth:     auth,
		Lookup:   resolver,
		Profiles: profiles,
		Cookies:  cookies,
		Now:      time.Now,
		echo:     e,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(slog.Default()))
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("bsky-signin-demo"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "signin",
		Registerer: config.MetricsRegisterer,
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))
	e.Use(session.Middleware(cookies))
	e.HTTPErrorHandler = srv.errorHandler
	e.Renderer = renderer

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())

	e.GET("/", srv.WebHome)
	e.POST("/login", srv.WebLogin)
	e.GET("/oauth/callback", srv.OAuthCallback)
	e.GET("/oauth/client-metadata.json", srv.ClientMetadata)
	e.POST("/post", srv.WebPost)
	e.POST("/logout", srv.WebLogout)
	e.GET("/api/user", srv.APIUser)

	return srv, nil
}

// Start runs the HTTP server in the background. Errors other than a clean shutdown are logged.
func (srv *Server) Start() {
	slog.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down")
	return srv.httpd.Shutdown(ctx)
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "signin-demo"})
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	data := pongo2.Context{
		"title": "Error",
	}

	var pe *PageError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &pe):
		code = pe.Status
		data["title"] = pe.Title
		data["lead"] = pe.Lead
		data["message"] = pe.Err.Error()
		if pe.ShowDetail {
			data["detail"] = errorChain(pe.Err)
		}
	case errors.As(err, &he):
		code = he.Code
		data["title"] = http.StatusText(code)
		data["message"] = fmt.Sprintf("%v", he.Message)
	default:
		data["message"] = err.Error()
	}
	data["statusCode"] = code

	if code >= 500 {
		slog.Warn("signin-http-internal-error", "err", err)
	}
	if err := c.Render(code, "error.html", data); err != nil {
		slog.Error("failed rendering error page", "err", err)
	}
}

// sessionDID returns the account DID bound to the browser session cookie, if any.
func (srv *Server) sessionDID(c echo.Context) (syntax.DID, bool) {
	sess, err := session.Get(sessionCookieName, c)
	if err != nil || sess == nil {
		return "", false
	}
	raw, ok := sess.Values["account_did"].(string)
	if !ok || raw == "" {
		return "", false
	}
	did, err := syntax.ParseDID(raw)
	if err != nil {
		return "", false
	}
	return did, true
}

func (srv *Server) bindSession(c echo.Context, did syntax.DID) error {
	// a cookie which fails to decode (eg, rotated secret) is replaced
	sess, _ := session.Get(sessionCookieName, c)
	if sess == nil {
		return fmt.Errorf("browser session store unavailable")
	}
	sess.Values["account_did"] = did.String()
	return sess.Save(c.Request(), c.Response())
}

func (srv *Server) destroySession(c echo.Context) error {
	sess, _ := session.Get(sessionCookieName, c)
	if sess == nil {
		return fmt.Errorf("browser session store unavailable")
	}
	sess.Values = make(map[interface{}]interface{})
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// currentProfile returns the cached profile for the signed-in account. A cookie without a cached profile counts as signed out.
func (srv *Server) currentProfile(c echo.Context) (Profile, bool) {
	did, ok := srv.sessionDID(c)
	if !ok {
		return Profile{}, false
	}
	return srv.Profiles.Get(did.String())
}
