package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"sponsorlink/internal/admintoken"
	"sponsorlink/internal/platform/config"
	"sponsorlink/internal/platform/metrics"
	"sponsorlink/internal/ratelimit"
	"sponsorlink/internal/session"
	"sponsorlink/internal/sponsorship"
	"sponsorlink/internal/update"
	"sponsorlink/pkg/testutil"
)

const (
	testAdminToken  = "admin-test-token"
	loginLimit      = 5
	submissionLimit = 30
)

type RouterSuite struct {
	suite.Suite
	ctx          context.Context
	router       http.Handler
	sponsorStore *sponsorship.InMemoryStore
	updateStore  *update.InMemoryStore
	updates      *update.Service
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	s.sponsorStore = sponsorship.NewInMemoryStore()
	s.updateStore = update.NewInMemoryStore()

	sponsorships := sponsorship.NewService(s.sponsorStore, logger)
	s.updates = update.NewService(s.updateStore, sponsorships, 30*24*time.Hour, logger, m)

	sessions := session.New("router-test-key", 30*24*time.Hour, false, sponsorships, logger, m)
	limiter := ratelimit.NewLimiter(ratelimit.NewInMemoryStore(), config.RateLimitConfig{
		Window:     time.Minute,
		Login:      loginLimit,
		Checkout:   20,
		Submission: submissionLimit,
	})
	rateLimits := ratelimit.NewMiddleware(limiter, logger, m)

	h := NewHandler(logger, m, sponsorships, s.updates, sessions, admintoken.New(testAdminToken), rateLimits)
	s.router = NewRouter(h)
}

func (s *RouterSuite) seedSponsorship(code, email, childID string) *sponsorship.Sponsorship {
	sp := &sponsorship.Sponsorship{
		SponsorCode: code,
		Email:       email,
		SponsorName: "Test Sponsor",
		ChildID:     childID,
		ChildName:   "Maria",
		Activation:  sponsorship.ActivationActive,
		Lifecycle:   sponsorship.LifecycleActive,
		Visible:     true,
	}
	s.Require().NoError(s.sponsorStore.Save(s.ctx, sp))
	return sp
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// login performs a successful login and returns the session cookie.
func (s *RouterSuite) login(email, code string) *http.Cookie {
	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/login",
		map[string]string{"email": email, "sponsor_code": code}))
	s.Require().Equal(http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	s.Require().FailNow("login response carried no session cookie")
	return nil
}

func (s *RouterSuite) adminRequest(method, path string, body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set("X-Admin-Token", testAdminToken)
	return req
}

func (s *RouterSuite) errorMessage(rec *httptest.ResponseRecorder) string {
	var body struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body.Error + ": " + body.Description
}

func (s *RouterSuite) TestHealthz() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *RouterSuite) TestLoginSuccess() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")

	cookie := s.login("a@x.com", "BAN-2025-104")
	s.True(cookie.HttpOnly)
	s.Equal("/", cookie.Path)
}

func (s *RouterSuite) TestLoginNormalizesInput() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")
	s.login("  A@X.COM ", "ban-2025-104")
}

// Unknown code, wrong email, and deactivated sponsorship all answer with the
// same status and message, so the endpoint cannot be used to probe which
// codes exist.
func (s *RouterSuite) TestLoginFailuresAreIndistinguishable() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")
	suspended := s.seedSponsorship("BAN-2025-200", "b@x.com", "child-200")
	suspended.Activation = sponsorship.ActivationSuspended
	s.Require().NoError(s.sponsorStore.Save(s.ctx, suspended))

	attempts := []map[string]string{
		{"email": "a@x.com", "sponsor_code": "BAN-2025-999"},
		{"email": "wrong@x.com", "sponsor_code": "BAN-2025-104"},
		{"email": "b@x.com", "sponsor_code": "BAN-2025-200"},
	}

	var messages []string
	for _, attempt := range attempts {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/login", attempt))
		s.Require().Equal(http.StatusUnauthorized, rec.Code)
		messages = append(messages, s.errorMessage(rec))
	}
	s.Equal(messages[0], messages[1])
	s.Equal(messages[0], messages[2])
}

func (s *RouterSuite) TestLoginValidation() {
	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "sponsor_code": "BAN-2025-104"}},
		{"bad code", map[string]string{"email": "a@x.com", "sponsor_code": "DROP TABLE"}},
		{"empty", map[string]string{}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/login", tc.body))
			s.Equal(http.StatusBadRequest, rec.Code)
		})
	}
}

func (s *RouterSuite) TestLoginRateLimited() {
	for i := 0; i < loginLimit; i++ {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/login",
			map[string]string{"email": "a@x.com", "sponsor_code": "BAN-2025-104"}))
		s.Require().Equal(http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/login",
		map[string]string{"email": "a@x.com", "sponsor_code": "BAN-2025-104"}))
	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))
}

func (s *RouterSuite) TestMe() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")
	cookie := s.login("a@x.com", "BAN-2025-104")

	req := httptest.NewRequest(http.MethodGet, "/portal/me", nil)
	req.AddCookie(cookie)
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var got sponsorship.Sponsorship
	testutil.DecodeJSON(s.T(), rec, &got)
	s.Equal("BAN-2025-104", got.SponsorCode)
	s.Equal("Maria", got.ChildName)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/portal/me", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestLogoutClearsCookie() {
	rec := s.do(httptest.NewRequest(http.MethodPost, "/portal/logout", nil))
	s.Require().Equal(http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(session.CookieName, cookies[0].Name)
	s.Negative(cookies[0].MaxAge)
}

func (s *RouterSuite) TestSponsorUpdateListing() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")
	cookie := s.login("a@x.com", "BAN-2025-104")

	submitted, err := s.updates.Submit(s.ctx, update.SubmitInput{
		ChildID: "child-104", Kind: update.KindProgressReport,
		Title: "Term report", Body: "Doing well.", SubmittedBy: "staff:field",
	})
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/portal/updates", nil)
	req.AddCookie(cookie)
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var listed []*update.Update
	testutil.DecodeJSON(s.T(), rec, &listed)
	s.Empty(listed, "pending updates are not sponsor-visible")

	_, err = s.updates.Publish(s.ctx, submitted.ID)
	s.Require().NoError(err)

	req = httptest.NewRequest(http.MethodGet, "/portal/updates", nil)
	req.AddCookie(cookie)
	rec = s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	testutil.DecodeJSON(s.T(), rec, &listed)
	s.Require().Len(listed, 1)
	s.Equal(submitted.ID, listed[0].ID)
}

func (s *RouterSuite) TestLatestUpdate() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")
	cookie := s.login("a@x.com", "BAN-2025-104")

	req := httptest.NewRequest(http.MethodGet, "/portal/updates/latest", nil)
	req.AddCookie(cookie)
	s.Equal(http.StatusNotFound, s.do(req).Code, "no published update yet")

	submitted, err := s.updates.Submit(s.ctx, update.SubmitInput{
		ChildID: "child-104", Kind: update.KindMilestone,
		Title: "First day of school", Body: "Maria started third grade.", SubmittedBy: "staff:field",
	})
	s.Require().NoError(err)
	_, err = s.updates.Publish(s.ctx, submitted.ID)
	s.Require().NoError(err)

	req = httptest.NewRequest(http.MethodGet, "/portal/updates/latest", nil)
	req.AddCookie(cookie)
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var got update.Update
	testutil.DecodeJSON(s.T(), rec, &got)
	s.Equal(submitted.ID, got.ID)
}

func (s *RouterSuite) TestRequestUpdateCooldown() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")
	cookie := s.login("a@x.com", "BAN-2025-104")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/updates/request",
		map[string]string{"note": "How is Maria?"})
	req.AddCookie(cookie)
	rec := s.do(req)
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var created update.Update
	testutil.DecodeJSON(s.T(), rec, &created)
	s.Equal(update.StatusPendingReview, created.Status)
	s.True(created.RequestedBySponsor)

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/updates/request",
		map[string]string{"note": "Again?"})
	req.AddCookie(cookie)
	rec = s.do(req)
	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))

	var denied throttledResponse
	testutil.DecodeJSON(s.T(), rec, &denied)
	s.Equal("rate_limited", denied.Error)
	s.True(denied.NextEligibleAt.After(time.Now()))
}

// An unauthenticated flood must stall at the rate limit, never reaching the
// session store.
func (s *RouterSuite) TestRequestUpdateRateLimitedBeforeAuth() {
	for range submissionLimit {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/updates/request",
			map[string]string{"note": "Any news?"}))
		s.Require().Equal(http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/portal/updates/request",
		map[string]string{"note": "Any news?"}))
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))
}

// Same for tokenless floods of the admin submission endpoint.
func (s *RouterSuite) TestAdminSubmitRateLimitedBeforeAuth() {
	body := map[string]string{
		"child_id": "child-104", "kind": "milestone",
		"title": "t", "body": "b", "submitted_by": "staff:field",
	}
	for range submissionLimit {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/updates", body))
		s.Require().Equal(http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/updates", body))
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))
}

func (s *RouterSuite) TestAdminRequiresToken() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/admin/updates/pending", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/updates/pending", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
}

func (s *RouterSuite) TestAdminReviewFlow() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")

	rec := s.do(s.adminRequest(http.MethodPost, "/admin/updates", map[string]any{
		"child_id": "child-104", "kind": "photo_update",
		"title": "New photos", "body": "Two photos from sports day.",
		"photos": []string{"p1.jpg"}, "submitted_by": "staff:field",
	}))
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created update.Update
	testutil.DecodeJSON(s.T(), rec, &created)

	rec = s.do(s.adminRequest(http.MethodGet, "/admin/updates/pending", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var pending []*update.Update
	testutil.DecodeJSON(s.T(), rec, &pending)
	s.Require().Len(pending, 1)

	rec = s.do(s.adminRequest(http.MethodPost, "/admin/updates/"+created.ID+"/publish", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var published update.Update
	testutil.DecodeJSON(s.T(), rec, &published)
	s.Equal(update.StatusPublished, published.Status)
	s.True(published.Visible)

	rec = s.do(s.adminRequest(http.MethodGet, "/admin/updates/"+created.ID, nil))
	s.Require().Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestAdminRejectAndCorrect() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")

	rec := s.do(s.adminRequest(http.MethodPost, "/admin/updates", map[string]any{
		"child_id": "child-104", "kind": "progress_report",
		"title": "Report", "body": "Wrong child named.", "submitted_by": "staff:field",
	}))
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created update.Update
	testutil.DecodeJSON(s.T(), rec, &created)

	rec = s.do(s.adminRequest(http.MethodPost, "/admin/updates/"+created.ID+"/reject",
		map[string]string{"reason": "names the wrong child"}))
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(s.adminRequest(http.MethodPost, "/admin/updates/"+created.ID+"/correct", map[string]any{
		"child_id": "child-104", "kind": "progress_report",
		"title": "Report", "body": "Corrected text.", "submitted_by": "staff:field",
	}))
	s.Require().Equal(http.StatusCreated, rec.Code)
	var correction update.Update
	testutil.DecodeJSON(s.T(), rec, &correction)
	s.Equal(created.ID, correction.SupersedesID)

	rec = s.do(s.adminRequest(http.MethodGet, "/admin/updates/"+created.ID, nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var prev update.Update
	testutil.DecodeJSON(s.T(), rec, &prev)
	s.Equal(correction.ID, prev.SupersededByID)
}

func (s *RouterSuite) TestAdminListSponsorships() {
	s.seedSponsorship("BAN-2025-104", "a@x.com", "child-104")
	s.seedSponsorship("BAN-2025-105", "b@x.com", "child-105")

	rec := s.do(s.adminRequest(http.MethodGet, "/admin/sponsorships", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var recs []*sponsorship.Sponsorship
	testutil.DecodeJSON(s.T(), rec, &recs)
	s.Len(recs, 2)
}

func (s *RouterSuite) TestCheckout() {
	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkout/session",
		map[string]any{"email": "a@x.com", "amount_cents": 2500}))
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkout/session",
		map[string]any{"email": "a@x.com", "amount_cents": 0}))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestPaymentWebhookAcknowledges() {
	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/webhooks/payment",
		map[string]string{"event": "payment.settled"}))
	s.Equal(http.StatusNoContent, rec.Code)
}
