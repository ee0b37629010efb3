package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/config"
	"github.com/heartmarshall/labsim/internal/transport/middleware"
)

type tokenValidator interface {
	ValidateToken(token string) (auth.Identity, error)
}

type requestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// RouterDeps bundles everything NewRouter mounts.
type RouterDeps struct {
	Health      *HealthHandler
	Profiles    *ProfileHandler
	Labs        *LaboratoryHandler
	Samples     *SampleHandler
	Missions    *MissionHandler
	Scans       *ScanHandler
	Blobs       *BlobHandler // optional
	Metrics     http.Handler
	Observer    requestObserver
	Tokens      tokenValidator
	RateLimiter *middleware.RateLimiter
	CORS        config.CORSConfig
	Limits      config.RateLimitConfig
	Log         *slog.Logger
}

// NewRouter builds the HTTP handler: probes and metrics at the root, the
// game API under /api/v1.
func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc, mws ...middleware.Middleware) http.Handler {
		return middleware.Chain(append([]middleware.Middleware{middleware.RequireIdentity}, mws...)...)(h)
	}
	joinLimit := d.RateLimiter.Limit("join", d.Limits.JoinPerMinute)
	scanLimit := d.RateLimiter.Limit("scans", d.Limits.ScansPerMinute)

	mux.HandleFunc("GET /live", d.Health.Live)
	mux.HandleFunc("GET /ready", d.Health.Ready)
	mux.HandleFunc("GET /health", d.Health.Health)
	mux.Handle("GET /metrics", d.Metrics)
	if d.Blobs != nil {
		mux.HandleFunc("GET /blobs/{key...}", d.Blobs.Get)
	}

	// Profile and save game.
	mux.Handle("POST /api/v1/profile", authed(d.Profiles.Sync))
	mux.Handle("GET /api/v1/profile", authed(d.Profiles.Get))
	mux.Handle("PATCH /api/v1/profile", authed(d.Profiles.Update))
	mux.Handle("PUT /api/v1/profile/current-laboratory", authed(d.Profiles.SetCurrentLaboratory))
	mux.Handle("PATCH /api/v1/profile/statistics", authed(d.Profiles.UpdateStatistics))
	mux.Handle("POST /api/v1/profile/experience", authed(d.Profiles.AddExperience))
	mux.Handle("GET /api/v1/profile/save", authed(d.Profiles.LoadSave))
	mux.Handle("PUT /api/v1/profile/save", authed(d.Profiles.StoreSave))
	mux.Handle("GET /api/v1/leaderboard", authed(d.Profiles.Leaderboard))

	// Laboratories.
	mux.Handle("POST /api/v1/laboratories", authed(d.Labs.Create))
	mux.Handle("GET /api/v1/laboratories", authed(d.Labs.List))
	mux.Handle("POST /api/v1/laboratories/join", authed(d.Labs.Join, joinLimit))
	mux.Handle("GET /api/v1/laboratories/{id}", authed(d.Labs.Get))
	mux.Handle("POST /api/v1/laboratories/{id}/leave", authed(d.Labs.Leave))
	mux.Handle("DELETE /api/v1/laboratories/{id}/members/{uid}", authed(d.Labs.RemoveMember))
	mux.Handle("PUT /api/v1/laboratories/{id}/members/{uid}/permissions", authed(d.Labs.UpdatePermissions))
	mux.Handle("POST /api/v1/laboratories/{id}/invite-code", authed(d.Labs.RegenerateInviteCode))
	mux.Handle("GET /api/v1/laboratories/{id}/watch", authed(d.Labs.Watch))

	// Samples.
	mux.Handle("POST /api/v1/samples", authed(d.Samples.Create))
	mux.Handle("GET /api/v1/samples/{id}", authed(d.Samples.Get))
	mux.Handle("PATCH /api/v1/samples/{id}/status", authed(d.Samples.UpdateStatus))
	mux.Handle("GET /api/v1/samples/{id}/qr.svg", authed(d.Samples.QRCode))
	mux.Handle("GET /api/v1/laboratories/{id}/samples", authed(d.Samples.ListByLaboratory))
	mux.Handle("POST /api/v1/laboratories/{id}/scan-validations", authed(d.Samples.ValidateScan, scanLimit))

	// Missions.
	mux.Handle("POST /api/v1/missions", authed(d.Missions.Create))
	mux.Handle("GET /api/v1/missions/{id}", authed(d.Missions.Get))
	mux.Handle("GET /api/v1/laboratories/{id}/missions", authed(d.Missions.ListAvailable))
	mux.Handle("POST /api/v1/missions/{id}/accept", authed(d.Missions.Accept))
	mux.Handle("POST /api/v1/missions/{id}/start", authed(d.Missions.Start))
	mux.Handle("POST /api/v1/missions/{id}/objectives/{objectiveId}/complete", authed(d.Missions.CompleteObjective))
	mux.Handle("POST /api/v1/missions/{id}/complete", authed(d.Missions.Complete))
	mux.Handle("POST /api/v1/missions/{id}/fail", authed(d.Missions.Fail))

	// Scans.
	mux.Handle("POST /api/v1/scans", authed(d.Scans.Record, scanLimit))

	return middleware.Chain(
		middleware.RequestID(),
		middleware.Logger(d.Log),
		middleware.Metrics(d.Observer, mux),
		middleware.Recovery(d.Log),
		middleware.CORS(d.CORS),
		middleware.Auth(d.Tokens),
	)(mux)
}

// OriginChecker returns a websocket origin policy matching the CORS
// allow-list. Requests without an Origin header (native clients) pass.
func OriginChecker(cfg config.CORSConfig) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.OriginAllowed(cfg, origin)
	}
}
