package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/email"
	"github.com/ignite/newsletter/internal/repository/postgres"
	"github.com/ignite/newsletter/internal/service/subscription"
)

const (
	findByEmailQuery = `SELECT id FROM subscriptions WHERE email = $1`
	insertQuery      = `INSERT INTO subscriptions (id, email, name, status, subscribed_at)`
	tokenInsertQuery = `INSERT INTO subscription_tokens (subscription_token, subscriber_id)`
	fullRowQuery     = `SELECT id, email, name, status, subscribed_at FROM subscriptions WHERE email = $1`
	tokenLookupQuery = `SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1`
	confirmQuery     = `UPDATE subscriptions SET status = $1 WHERE id = $2`
)

// providerStub stands in for the email provider and records every message
// it receives.
type providerStub struct {
	mu       sync.Mutex
	status   int
	requests []map[string]string
}

func (p *providerStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	p.mu.Lock()
	p.requests = append(p.requests, body)
	p.mu.Unlock()

	w.WriteHeader(p.status)
}

func (p *providerStub) received() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]string, len(p.requests))
	copy(out, p.requests)
	return out
}

type testApp struct {
	handler  http.Handler
	mock     sqlmock.Sqlmock
	provider *providerStub
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	provider := &providerStub{status: http.StatusOK}
	providerServer := httptest.NewServer(provider)
	t.Cleanup(providerServer.Close)

	client, err := email.NewClient(config.EmailConfig{
		BaseURL:        providerServer.URL,
		SenderEmail:    "newsletter@example.com",
		ServerToken:    "test-token",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)

	renderer, err := email.NewRenderer()
	require.NoError(t, err)

	svc := subscription.NewService(postgres.NewSubscriptionStore(db), client,
		renderer, "https://newsletter.example.com", nil)

	return &testApp{
		handler:  SetupRoutes(NewHandlers(svc), nil),
		mock:     mock,
		provider: provider,
	}
}

func (app *testApp) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) expectSubscribeTx() {
	app.mock.ExpectBegin()
	app.mock.ExpectQuery(regexp.QuoteMeta(findByEmailQuery)).
		WillReturnError(sql.ErrNoRows)
	app.mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	app.mock.ExpectExec(regexp.QuoteMeta(tokenInsertQuery)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	app.mock.ExpectCommit()
}

var confirmationLinkRe = regexp.MustCompile(
	`https://newsletter\.example\.com/subscriptions/confirm\?subscription_token=[a-zA-Z0-9]{25}`)

func TestSubscribeReturns200ForValidFormData(t *testing.T) {
	app := newTestApp(t)
	app.expectSubscribeTx()

	rec := app.postForm("/subscriptions", url.Values{
		"name":  {"le guin"},
		"email": {"ursula_le_guin@gmail.com"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len(), "success body must be empty")
	require.NoError(t, app.mock.ExpectationsWereMet())

	sent := app.provider.received()
	require.Len(t, sent, 1)
	assert.Equal(t, "newsletter@example.com", sent[0]["From"])
	assert.Equal(t, "ursula_le_guin@gmail.com", sent[0]["To"])

	htmlLink := confirmationLinkRe.FindString(sent[0]["HtmlBody"])
	textLink := confirmationLinkRe.FindString(sent[0]["TextBody"])
	require.NotEmpty(t, htmlLink, "HTML body must carry the confirmation link")
	require.NotEmpty(t, textLink, "text body must carry the confirmation link")
	assert.Equal(t, htmlLink, textLink, "both bodies must carry the same link")
}

func TestSubscribeReturns400WhenDataIsMissing(t *testing.T) {
	cases := []struct {
		label string
		form  url.Values
	}{
		{"missing the email", url.Values{"name": {"le guin"}}},
		{"missing the name", url.Values{"email": {"ursula_le_guin@gmail.com"}}},
		{"missing both", url.Values{}},
		{"empty name", url.Values{"name": {""}, "email": {"ursula_le_guin@gmail.com"}}},
		{"invalid email", url.Values{"name": {"le guin"}, "email": {"definitely-not-an-email"}}},
	}

	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			app := newTestApp(t)

			rec := app.postForm("/subscriptions", tc.form)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, rec.Body.Len())
			assert.Empty(t, app.provider.received(), "no email on rejected input")
			assert.NoError(t, app.mock.ExpectationsWereMet(), "no database traffic on rejected input")
		})
	}
}

func TestSubscribeReturns500OnDatabaseError(t *testing.T) {
	app := newTestApp(t)
	app.mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	rec := app.postForm("/subscriptions", url.Values{
		"name":  {"le guin"},
		"email": {"ursula_le_guin@gmail.com"},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, app.provider.received())
}

func TestSubscribeReturns500WhenDispatchFails(t *testing.T) {
	app := newTestApp(t)
	app.provider.status = http.StatusInternalServerError
	app.expectSubscribeTx()

	rec := app.postForm("/subscriptions", url.Values{
		"name":  {"le guin"},
		"email": {"ursula_le_guin@gmail.com"},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// The transaction committed before the dispatch attempt: the
	// subscriber row is durable even though the caller sees a 500.
	require.NoError(t, app.mock.ExpectationsWereMet())
}

func TestSubscribeIsIdempotentForRepeatedEmail(t *testing.T) {
	app := newTestApp(t)
	existing := uuid.New()

	app.mock.ExpectBegin()
	app.mock.ExpectQuery(regexp.QuoteMeta(findByEmailQuery)).
		WithArgs("ursula_le_guin@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existing.String()))
	app.mock.ExpectExec(regexp.QuoteMeta(tokenInsertQuery)).
		WithArgs(sqlmock.AnyArg(), existing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	app.mock.ExpectCommit()

	rec := app.postForm("/subscriptions", url.Values{
		"name":  {"le guin"},
		"email": {"ursula_le_guin@gmail.com"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, app.mock.ExpectationsWereMet())
	assert.Len(t, app.provider.received(), 1, "repeat subscribe still sends a confirmation email")
}

func TestConfirmReturns200ForValidToken(t *testing.T) {
	app := newTestApp(t)
	subscriberID := uuid.New()
	token := strings.Repeat("a", 25)

	app.mock.ExpectQuery(regexp.QuoteMeta(tokenLookupQuery)).
		WithArgs(token).
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow(subscriberID.String()))
	app.mock.ExpectExec(regexp.QuoteMeta(confirmQuery)).
		WithArgs("confirmed", subscriberID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := app.get("/subscriptions/confirm?subscription_token=" + token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
	require.NoError(t, app.mock.ExpectationsWereMet())
}

func TestConfirmReturns400WithoutToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/subscriptions/confirm")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, app.mock.ExpectationsWereMet())
}

func TestConfirmReturns400ForMalformedToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/subscriptions/confirm?subscription_token=abc")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, app.mock.ExpectationsWereMet())
}

func TestConfirmReturns401ForUnknownToken(t *testing.T) {
	app := newTestApp(t)
	token := strings.Repeat("z", 25)

	app.mock.ExpectQuery(regexp.QuoteMeta(tokenLookupQuery)).
		WithArgs(token).
		WillReturnError(sql.ErrNoRows)

	rec := app.get("/subscriptions/confirm?subscription_token=" + token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestResendReturns200ForPendingSubscriber(t *testing.T) {
	app := newTestApp(t)
	subscriberID := uuid.New()

	app.mock.ExpectQuery(regexp.QuoteMeta(fullRowQuery)).
		WithArgs("ursula_le_guin@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "status", "subscribed_at"}).
			AddRow(subscriberID.String(), "ursula_le_guin@gmail.com", "le guin",
				"pending_confirmation", time.Now().UTC()))
	app.mock.ExpectBegin()
	app.mock.ExpectExec(regexp.QuoteMeta(tokenInsertQuery)).
		WithArgs(sqlmock.AnyArg(), subscriberID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	app.mock.ExpectCommit()

	rec := app.postForm("/subscriptions/resend", url.Values{
		"email": {"ursula_le_guin@gmail.com"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, app.mock.ExpectationsWereMet())

	sent := app.provider.received()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, confirmationLinkRe.FindString(sent[0]["HtmlBody"]))
}

func TestResendReturns400ForUnknownEmail(t *testing.T) {
	app := newTestApp(t)

	app.mock.ExpectQuery(regexp.QuoteMeta(fullRowQuery)).
		WillReturnError(sql.ErrNoRows)

	rec := app.postForm("/subscriptions/resend", url.Values{
		"email": {"nobody@example.com"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, app.provider.received())
}

func TestResendReturns400ForConfirmedSubscriber(t *testing.T) {
	app := newTestApp(t)

	app.mock.ExpectQuery(regexp.QuoteMeta(fullRowQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "status", "subscribed_at"}).
			AddRow(uuid.New().String(), "ursula_le_guin@gmail.com", "le guin",
				"confirmed", time.Now().UTC()))

	rec := app.postForm("/subscriptions/resend", url.Values{
		"email": {"ursula_le_guin@gmail.com"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, app.provider.received())
}
