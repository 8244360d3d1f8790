package httpapi

import (
	"io"
	"net/http"
	"time"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Prefix is the mount point of every endpoint.
const Prefix = "/api/v1"

// RefreshCookieName is the cookie that carries the refresh token.
const RefreshCookieName = "refreshToken"

const maxBodyBytes = 1 << 20

// Options tunes the HTTP surface.
type Options struct {
	// SecureCookie marks the refresh cookie Secure.
	SecureCookie bool
	// CookiePath scopes the refresh cookie. Defaults to Prefix.
	CookiePath string
	// Metrics, when set, records per-route request metrics.
	Metrics *HTTPMetrics
	Logger  logrus.FieldLogger
}

// API serves the authentication and account endpoints.
type API struct {
	engine *gateAuth.Engine
	log    logrus.FieldLogger
	opts   Options
}

// New returns an API bound to engine.
func New(engine *gateAuth.Engine, opts Options) *API {
	if opts.CookiePath == "" {
		opts.CookiePath = Prefix
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &API{engine: engine, log: log, opts: opts}
}

type endpoint struct {
	method  string
	path    string
	route   middleware.Route
	handler http.HandlerFunc
}

func (a *API) endpoints() []endpoint {
	anon := middleware.Route{Anonymous: true}
	first := middleware.Route{FirstUserOperation: true}
	guarded := middleware.Route{}

	return []endpoint{
		{http.MethodPost, "/login", anon, a.login},
		{http.MethodPost, "/refresh-token", anon, a.refreshToken},
		{http.MethodPost, "/validate-token", anon, a.validateToken},
		{http.MethodPost, "/revoke-token", guarded, a.revokeToken},
		{http.MethodGet, "/get-username", guarded, a.getUsername},

		{http.MethodPut, "/create-user", first, a.createUser},
		{http.MethodGet, "/my-user", guarded, a.myUser},
		{http.MethodGet, "/get-user", guarded, a.getUser},
		{http.MethodPost, "/update-my-user", guarded, a.updateMyUser},
		{http.MethodPost, "/update-user", guarded, a.updateUser},
		{http.MethodGet, "/my-roles", guarded, a.myRoles},
		{http.MethodDelete, "/delete-user", guarded, a.deleteUser},
		{http.MethodGet, "/users-list", guarded, a.usersList},
		{http.MethodPost, "/assign-roles", guarded, a.assignRoles},

		{http.MethodPut, "/create-role", guarded, a.createRole},
		{http.MethodGet, "/roles-list", guarded, a.rolesList},
		{http.MethodGet, "/transactions-list", guarded, a.transactionsList},
	}
}

// Register mounts every endpoint on r under [Prefix].
func (a *API) Register(r *mux.Router) {
	sub := r.PathPrefix(Prefix).Subrouter()
	for _, ep := range a.endpoints() {
		sub.Handle(ep.path, middleware.Guard(a.engine, ep.route)(ep.handler)).Methods(ep.method)
	}
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
}

// Handler returns a router with request IDs, client IP capture and access
// logging applied.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, middleware.WithClientIP, accessLog(a.log, a.opts.Metrics))
	a.Register(r)
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	rtt, err := a.engine.Ping(r.Context())
	if err != nil {
		a.log.WithError(err).Warn("health check failed")
		writeProblem(w, r, http.StatusServiceUnavailable, typeInternal, "ServiceUnavailable", "redis unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redis": rtt.Round(time.Microsecond).String()})
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     a.opts.CookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.opts.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     a.opts.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.opts.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
