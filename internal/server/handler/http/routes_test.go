package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/analysis"
	"github.com/parseldeger/imar/internal/models"
	"github.com/parseldeger/imar/internal/repository"
	"github.com/parseldeger/imar/internal/search"
	"github.com/parseldeger/imar/internal/service"
)

type stubSearcher struct{ calls atomic.Int32 }

func (s *stubSearcher) Search(context.Context, models.Property) search.Result {
	s.calls.Add(1)
	return search.Result{Bundle: "Başlık: imar planı"}
}

type stubAnalyzer struct{ calls atomic.Int32 }

func (s *stubAnalyzer) Analyze(context.Context, models.Property, string) analysis.Result {
	s.calls.Add(1)
	return analysis.Result{Text: "İMAR DURUMU: konut"}
}

type stubExchanger struct{}

func (stubExchanger) Exchange(_ context.Context, sessionID string) (*models.Profile, error) {
	if sessionID != "good" {
		return nil, service.ErrIdentityRejected
	}
	return &models.Profile{Email: "buyer@example.com", Name: "Ayşe"}, nil
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string, string) (models.Identity, error) {
	return models.Identity{}, errors.New("db down")
}

var webhookCreds = service.WebhookCredentials{Username: "shop", Secret: "s3cret"}

type testServer struct {
	*httptest.Server
	repo     *repository.MemoryRepository
	searcher *stubSearcher
	analyzer *stubAnalyzer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := zap.NewNop()
	repo := repository.NewMemoryRepository()
	clock := service.RealClock{}
	ledger := service.NewLedger(repo, clock)
	searcher := &stubSearcher{}
	analyzer := &stubAnalyzer{}

	router := NewRouter(
		&AnalysisHandler{AnalysisService: service.NewAnalysisService(ledger, searcher, analyzer, clock, log), Log: log},
		&AuthHandler{
			AuthService: service.NewAuthService(repo, stubExchanger{}, clock, service.UUIDGenerator{}, service.DefaultSignupCredits),
			Log:         log,
		},
		&PaymentHandler{Reconciler: service.NewPaymentReconciler(repo, repo, ledger, webhookCreds, log), Log: log},
		RouterConfig{
			Resolver:    service.NewIdentityResolver(repo, clock),
			CORSOrigins: []string{"*"},
			Logger:      log,
		},
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, repo: repo, searcher: searcher, analyzer: analyzer}
}

func (s *testServer) do(t *testing.T, method, path, contentType, body string, mutate func(*http.Request)) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if mutate != nil {
		mutate(req)
	}
	res, err := s.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)
	return res, buf.String()
}

const parcelJSON = `{"province":"Ankara","district":"Çankaya","neighborhood":"Kızılay","block":"1","parcel":"2"}`

func TestRouter_PublicRoutes(t *testing.T) {
	s := newTestServer(t)

	res, body := s.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	res, body = s.do(t, http.MethodGet, "/api/", "", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "API")

	res, _ = s.do(t, http.MethodGet, "/api/payment/packages", "", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRouter_AnonymousQuota(t *testing.T) {
	s := newTestServer(t)

	for i := 1; i <= models.AnonymousCreditLimit; i++ {
		res, body := s.do(t, http.MethodPost, "/api/analyze-property", "application/json", parcelJSON, nil)
		require.Equal(t, http.StatusOK, res.StatusCode, body)

		var out service.AnalysisOutcome
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		assert.Equal(t, models.AnonymousCreditLimit-i, out.RemainingCredits)
	}

	res, body := s.do(t, http.MethodPost, "/api/analyze-property", "application/json", parcelJSON, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, body, "giriş yapınız")
	assert.EqualValues(t, models.AnonymousCreditLimit, s.searcher.calls.Load())
	assert.EqualValues(t, models.AnonymousCreditLimit, s.analyzer.calls.Load())

	_, body = s.do(t, http.MethodGet, "/api/credits", "", "", nil)
	assert.JSONEq(t, `{"remaining_credits":0,"is_authenticated":false}`, body)

	// Another address has its own allowance.
	_, body = s.do(t, http.MethodGet, "/api/credits", "", "", func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "198.51.100.1")
	})
	assert.JSONEq(t, `{"remaining_credits":5,"is_authenticated":false}`, body)
}

func TestRouter_RejectsNonJSON(t *testing.T) {
	s := newTestServer(t)

	res, _ := s.do(t, http.MethodPost, "/api/analyze-property", "text/plain", parcelJSON, nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, res.StatusCode)
	assert.Zero(t, s.searcher.calls.Load())
}

func TestRouter_SignInAndTopUp(t *testing.T) {
	s := newTestServer(t)

	res, _ := s.do(t, http.MethodPost, "/api/auth/session", "application/json", `{"session_id":"bad"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = s.do(t, http.MethodPost, "/api/auth/session", "application/json", `{"session_id":"good"}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == "session_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	withCookie := func(r *http.Request) { r.AddCookie(cookie) }

	res, body := s.do(t, http.MethodGet, "/api/auth/me", "", "", withCookie)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "buyer@example.com")

	_, body = s.do(t, http.MethodGet, "/api/credits", "", "", withCookie)
	assert.JSONEq(t, `{"remaining_credits":10,"is_authenticated":true}`, body)

	order := base64.StdEncoding.EncodeToString([]byte(
		`{"email":"buyer@example.com","orderid":"ORD-1","price":"50.00","currency":0,"istest":1}`))
	form := url.Values{"res": {order}, "hash": {webhookCreds.Sign(order)}}.Encode()
	for range 2 {
		res, body = s.do(t, http.MethodPost, "/api/payment/webhook", "application/x-www-form-urlencoded", form, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "success", body)
	}
	assert.Equal(t, 1, s.repo.PaymentCount())

	_, body = s.do(t, http.MethodGet, "/api/credits", "", "", withCookie)
	assert.JSONEq(t, `{"remaining_credits":30,"is_authenticated":true}`, body)

	bad := url.Values{"res": {order}, "hash": {"00"}}.Encode()
	_, body = s.do(t, http.MethodPost, "/api/payment/webhook", "application/x-www-form-urlencoded", bad, nil)
	assert.Equal(t, "error", body)

	res, _ = s.do(t, http.MethodPost, "/api/auth/logout", "", "", withCookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = s.do(t, http.MethodGet, "/api/auth/me", "", "", withCookie)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRouter_IdentityFailure(t *testing.T) {
	log := zap.NewNop()
	router := NewRouter(
		&AnalysisHandler{AnalysisService: &fakeAnalysisService{}, Log: log},
		&AuthHandler{AuthService: &fakeAuthService{}, Log: log},
		&PaymentHandler{Reconciler: &fakeReconciler{}, Log: log},
		RouterConfig{Resolver: failingResolver{}, CORSOrigins: []string{"*"}, Logger: log},
	)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/credits", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The webhook does not depend on identity resolution.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payment/webhook", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	res, _ := s.do(t, http.MethodOptions, "/api/analyze-property", "", "", func(r *http.Request) {
		r.Header.Set("Origin", "https://parseldeger.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	assert.Less(t, res.StatusCode, 300)
	assert.NotEmpty(t, res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", res.Header.Get("Access-Control-Allow-Credentials"))
}
