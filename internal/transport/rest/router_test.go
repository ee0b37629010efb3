package rest_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/blob"
	"github.com/heartmarshall/labsim/internal/config"
	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/metrics"
	"github.com/heartmarshall/labsim/internal/qrcode"
	"github.com/heartmarshall/labsim/internal/service/laboratory"
	"github.com/heartmarshall/labsim/internal/service/mission"
	"github.com/heartmarshall/labsim/internal/service/profile"
	"github.com/heartmarshall/labsim/internal/service/sample"
	"github.com/heartmarshall/labsim/internal/service/scan"
	"github.com/heartmarshall/labsim/internal/transport/middleware"
	"github.com/heartmarshall/labsim/internal/transport/rest"
)

type testServer struct {
	*httptest.Server
	tokens *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewRealClock()

	hub := docstore.NewHub()
	store := docstore.New(docstore.NewMemory(), docstore.WithFeed(hub), docstore.WithClock(clock), docstore.WithLogger(log))
	t.Cleanup(func() { store.Close() })
	images := blob.NewMemory("http://blobs.test")
	validator := qrcode.NewValidator(clock, qrcode.DefaultMaxAge)
	m := metrics.New()

	profiles := profile.NewService(log, store, 10000)
	labs := laboratory.NewService(log, store, profiles, clock)
	samples := sample.NewService(log, store, images, labs, validator, profiles, clock)
	missions := mission.NewService(log, store, labs, profiles, clock)
	scans := scan.NewService(log, store, validator, m, clock)

	tokens := auth.NewJWTManager("test-secret-that-is-long-enough!", "labsim", time.Hour, clock)
	limiter := middleware.NewRateLimiter(clock, time.Minute)
	t.Cleanup(limiter.Stop)

	cors := config.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST", AllowedHeaders: "Authorization"}
	handler := rest.NewRouter(rest.RouterDeps{
		Health:      rest.NewHealthHandler(map[string]rest.Pinger{"store": store}, "test", clock),
		Profiles:    rest.NewProfileHandler(profiles, m, log),
		Labs:        rest.NewLaboratoryHandler(labs, m, rest.OriginChecker(cors), log),
		Samples:     rest.NewSampleHandler(samples, labs, log),
		Missions:    rest.NewMissionHandler(missions, labs, log),
		Scans:       rest.NewScanHandler(scans, log),
		Blobs:       rest.NewBlobHandler(images, log),
		Metrics:     m.Handler(),
		Observer:    m,
		Tokens:      tokens,
		RateLimiter: limiter,
		CORS:        cors,
		Limits:      config.RateLimitConfig{JoinPerMinute: 10, ScansPerMinute: 100},
		Log:         log,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, tokens: tokens}
}

func (s *testServer) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := s.tokens.GenerateToken(auth.Identity{UID: uid, Email: uid + "@lab.test", DisplayName: strings.ToUpper(uid)})
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// signIn creates the profile, as the client does on startup.
func (s *testServer) signIn(t *testing.T, uid string) string {
	t.Helper()
	tok := s.token(t, uid)
	resp, body := s.do(t, http.MethodPost, "/api/v1/profile", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	return tok
}

func (s *testServer) createLab(t *testing.T, token string) domain.Laboratory {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/v1/laboratories", token, map[string]any{"name": "Bench"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decode[domain.Laboratory](t, body)
}

// ---------------------------------------------------------------------------
// Probes and auth
// ---------------------------------------------------------------------------

func TestRouter_Probes(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	for _, path := range []string{"/live", "/ready", "/health"} {
		resp, _ := srv.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	assert.NotEmpty(t, mustHeader(t, srv, "/live", "X-Request-Id"))
}

func mustHeader(t *testing.T, srv *testServer, path, header string) string {
	resp, _ := srv.do(t, http.MethodGet, path, "", nil)
	return resp.Header.Get(header)
}

func TestRouter_RequiresIdentity(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/api/v1/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "unauthorized")

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ---------------------------------------------------------------------------
// Profile and save game
// ---------------------------------------------------------------------------

func TestRouter_ProfileLifecycle(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	tok := srv.signIn(t, "alice")

	resp, body := srv.do(t, http.MethodGet, "/api/v1/profile", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[domain.UserProfile](t, body)
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, 1, p.Level)

	resp, body = srv.do(t, http.MethodPatch, "/api/v1/profile", tok, map[string]any{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[rest.ErrorResponse](t, body)
	assert.Equal(t, "VALIDATION", errResp.Code)
	require.Len(t, errResp.Fields, 1)
	assert.Equal(t, "theme", errResp.Fields[0].Field)

	resp, body = srv.do(t, http.MethodPost, "/api/v1/profile/experience", tok, map[string]any{"amount": 150})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	xp := decode[profile.ExperienceResult](t, body)
	assert.Equal(t, 2, xp.Level)
	assert.True(t, xp.LeveledUp)

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/profile/experience", tok, map[string]any{"amount": 1, "bogus": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")
}

func TestRouter_SaveGame(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	tok := srv.signIn(t, "alice")

	resp, _ := srv.do(t, http.MethodGet, "/api/v1/profile/save", tok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	snap := domain.SaveGame{Samples: []domain.Sample{{ID: "s1", Name: "Brine"}}}
	resp, body := srv.do(t, http.MethodPut, "/api/v1/profile/save", tok, snap)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	resp, body = srv.do(t, http.MethodGet, "/api/v1/profile/save", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[domain.SaveGame](t, body)
	require.Len(t, got.Samples, 1)
	assert.Equal(t, "Brine", got.Samples[0].Name)
}

func TestRouter_Leaderboard_BadLimit(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	tok := srv.signIn(t, "alice")

	resp, _ := srv.do(t, http.MethodGet, "/api/v1/leaderboard?limit=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := srv.do(t, http.MethodGet, "/api/v1/leaderboard?limit=5", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.UserProfile](t, body), 1)
}

// ---------------------------------------------------------------------------
// Laboratories
// ---------------------------------------------------------------------------

func TestRouter_Membership(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	owner := srv.signIn(t, "owner")
	guest := srv.signIn(t, "guest")
	lab := srv.createLab(t, owner)

	resp, _ := srv.do(t, http.MethodGet, "/api/v1/laboratories/"+lab.ID, guest, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "private lab hidden from non-members")

	resp, body := srv.do(t, http.MethodPost, "/api/v1/laboratories/join", guest, map[string]any{"inviteCode": lab.InviteCode})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Len(t, decode[domain.Laboratory](t, body).Members, 2)

	resp, body = srv.do(t, http.MethodPost, "/api/v1/laboratories/join", guest, map[string]any{"inviteCode": lab.InviteCode})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "you are already a member of this laboratory", decode[rest.ErrorResponse](t, body).Error)

	resp, body = srv.do(t, http.MethodDelete, "/api/v1/laboratories/"+lab.ID+"/members/owner", owner, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "the laboratory owner cannot be removed", decode[rest.ErrorResponse](t, body).Error)

	resp, body = srv.do(t, http.MethodGet, "/api/v1/laboratories", guest, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Laboratory](t, body), 1)

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/laboratories/"+lab.ID+"/leave", guest, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_JoinInvalidCode(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	tok := srv.signIn(t, "guest")

	resp, body := srv.do(t, http.MethodPost, "/api/v1/laboratories/join", tok, map[string]any{"inviteCode": "ZZZZZZ"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid invite code", decode[rest.ErrorResponse](t, body).Error)
}

func TestRouter_Watch(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	owner := srv.signIn(t, "owner")
	guest := srv.signIn(t, "guest")
	lab := srv.createLab(t, owner)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/laboratories/" + lab.ID + "/watch?access_token=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck

	var first domain.Laboratory
	require.NoError(t, conn.ReadJSON(&first))
	assert.Len(t, first.Members, 1)

	resp, _ := srv.do(t, http.MethodPost, "/api/v1/laboratories/join", guest, map[string]any{"inviteCode": lab.InviteCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Skip intermediate versions until the join shows up.
	for {
		var next domain.Laboratory
		require.NoError(t, conn.ReadJSON(&next))
		if len(next.Members) == 2 {
			break
		}
	}
}

func TestRouter_Watch_ClosedAfterRemoval(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	owner := srv.signIn(t, "owner")
	guest := srv.signIn(t, "guest")
	lab := srv.createLab(t, owner)

	resp, _ := srv.do(t, http.MethodPost, "/api/v1/laboratories/join", guest, map[string]any{"inviteCode": lab.InviteCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/laboratories/" + lab.ID + "/watch?access_token=" + guest
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck

	var first domain.Laboratory
	require.NoError(t, conn.ReadJSON(&first))
	require.True(t, first.IsMember("guest"))

	resp, _ = srv.do(t, http.MethodDelete, "/api/v1/laboratories/"+lab.ID+"/members/guest", owner, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodPost, "/api/v1/laboratories/"+lab.ID+"/invite-code", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Every version delivered before the close still lists the guest.
	for {
		var next domain.Laboratory
		err := conn.ReadJSON(&next)
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "unexpected error: %v", err)
			return
		}
		assert.True(t, next.IsMember("guest"), "removed member received a later version")
	}
}

func TestRouter_Watch_Anonymous(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	owner := srv.signIn(t, "owner")
	lab := srv.createLab(t, owner)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/laboratories/" + lab.ID + "/watch"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ---------------------------------------------------------------------------
// Samples and scans
// ---------------------------------------------------------------------------

func TestRouter_SampleScanFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	owner := srv.signIn(t, "owner")
	lab := srv.createLab(t, owner)

	resp, body := srv.do(t, http.MethodPost, "/api/v1/samples", owner, map[string]any{
		"laboratoryId": lab.ID, "name": "River water", "matrix": "water",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	s := decode[domain.Sample](t, body)
	assert.Equal(t, domain.SampleReceived, s.Status)

	resp, body = srv.do(t, http.MethodGet, "/api/v1/samples/"+s.ID+"/qr.svg", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "<svg")

	resp, body = srv.do(t, http.MethodPost, "/api/v1/laboratories/"+lab.ID+"/scan-validations", owner, map[string]any{"raw": s.QRPayload})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, s.ID, decode[domain.Sample](t, body).ID)

	resp, body = srv.do(t, http.MethodPost, "/api/v1/laboratories/"+lab.ID+"/scan-validations", owner, map[string]any{"raw": "not json"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "QR code is not a valid payload", decode[rest.ErrorResponse](t, body).Error)

	resp, body = srv.do(t, http.MethodPost, "/api/v1/scans", owner, map[string]any{"deviceId": "phone-1", "raw": s.QRPayload})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.NotEmpty(t, decode[rest.ScanResponse](t, body).ID)

	resp, _ = srv.do(t, http.MethodPatch, "/api/v1/samples/"+s.ID+"/status", owner, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "received cannot jump to completed")

	resp, body = srv.do(t, http.MethodGet, "/api/v1/laboratories/"+lab.ID+"/samples", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Sample](t, body), 1)
}

// ---------------------------------------------------------------------------
// Missions
// ---------------------------------------------------------------------------

func TestRouter_MissionLifecycle(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	owner := srv.signIn(t, "owner")
	lab := srv.createLab(t, owner)

	resp, body := srv.do(t, http.MethodPost, "/api/v1/missions", owner, map[string]any{
		"laboratoryId": lab.ID,
		"title":        "Titrate",
		"difficulty":   "easy",
		"objectives":   []map[string]any{{"description": "Measure pH"}},
		"rewards":      map[string]any{"experience": 120, "money": 50},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	m := decode[domain.Mission](t, body)

	resp, body = srv.do(t, http.MethodGet, "/api/v1/laboratories/"+lab.ID+"/missions", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Mission](t, body), 1)

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/missions/"+m.ID+"/complete", owner, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	for _, step := range []string{"accept", "start", "objectives/obj-1/complete"} {
		resp, body = srv.do(t, http.MethodPost, "/api/v1/missions/"+m.ID+"/"+step, owner, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, step+": "+string(body))
	}

	resp, body = srv.do(t, http.MethodPost, "/api/v1/missions/"+m.ID+"/complete", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	res := decode[mission.CompletionResult](t, body)
	assert.Equal(t, domain.MissionCompleted, res.Mission.Status)
	require.NotNil(t, res.Experience)
	assert.Equal(t, 120, res.Experience.Experience)
}

// ---------------------------------------------------------------------------
// Metrics and blobs
// ---------------------------------------------------------------------------

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	srv.do(t, http.MethodGet, "/live", "", nil)
	resp, body := srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `labsim_http_requests_total{code="200",method="GET",route="GET /live"}`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRouter_BlobNotFound(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodGet, "/blobs/qr-codes/missing.png", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
