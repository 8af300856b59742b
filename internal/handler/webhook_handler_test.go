package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivelink/drivelink-api/internal/conversation"
)

type routerMock struct {
	reply string
	err   error
	got   conversation.InboundMessage
}

func (m *routerMock) HandleMessage(ctx context.Context, msg conversation.InboundMessage) (string, error) {
	m.got = msg
	return m.reply, m.err
}

type validatorMock struct {
	accept bool
	gotURL string
	gotSig string
}

func (m *validatorMock) ValidRequest(url string, form map[string]string, signature string) bool {
	m.gotURL = url
	m.gotSig = signature
	return m.accept
}

func postWebhook(t *testing.T, h *WebhookHandler, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/whatsapp/webhook", h.Receive)
	router.POST("/whatsapp/status", h.Status)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRepliesWithTwiML(t *testing.T) {
	routes := &routerMock{reply: "Hi Tariro, what would you like to do?"}
	h := NewWebhookHandler(routes, &validatorMock{accept: true}, nil)

	form := url.Values{}
	form.Set("From", "whatsapp:+263771234567")
	form.Set("Body", "hi")
	form.Set("MessageSid", "SM123")

	rec := postWebhook(t, h, "/whatsapp/webhook", form, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, rec.Body.String(), "<Message>Hi Tariro, what would you like to do?</Message>")
	assert.Equal(t, "whatsapp:+263771234567", routes.got.From)
	assert.Equal(t, "hi", routes.got.Body)
	assert.Equal(t, "SM123", routes.got.MessageSid)
}

func TestWebhookButtonFieldsForwarded(t *testing.T) {
	routes := &routerMock{reply: "ok"}
	h := NewWebhookHandler(routes, &validatorMock{accept: true}, nil)

	form := url.Values{}
	form.Set("From", "whatsapp:+263771234567")
	form.Set("Body", "Book a lesson")
	form.Set("ButtonText", "Book a lesson")
	form.Set("ButtonPayload", "book")

	rec := postWebhook(t, h, "/whatsapp/webhook", form, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "book", routes.got.ButtonPayload)
	assert.Equal(t, "Book a lesson", routes.got.ButtonText)
}

func TestWebhookEmptyReplyIsEmptyResponse(t *testing.T) {
	h := NewWebhookHandler(&routerMock{reply: ""}, &validatorMock{accept: true}, nil)

	form := url.Values{}
	form.Set("From", "whatsapp:+263771234567")
	form.Set("Body", "hi")

	rec := postWebhook(t, h, "/whatsapp/webhook", form, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response></Response>")
	assert.NotContains(t, rec.Body.String(), "<Message>")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	validator := &validatorMock{accept: false}
	h := NewWebhookHandler(&routerMock{}, validator, nil)

	form := url.Values{}
	form.Set("From", "whatsapp:+263771234567")
	form.Set("Body", "hi")

	rec := postWebhook(t, h, "/whatsapp/webhook", form, map[string]string{
		"X-Twilio-Signature": "bogus",
		"X-Forwarded-Proto":  "https",
		"X-Forwarded-Host":   "api.drivelink.co.zw",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "bogus", validator.gotSig)
	assert.Equal(t, "https://api.drivelink.co.zw/whatsapp/webhook", validator.gotURL)
}

func TestWebhookRouterErrorIs500(t *testing.T) {
	h := NewWebhookHandler(&routerMock{err: assert.AnError}, &validatorMock{accept: true}, nil)

	form := url.Values{}
	form.Set("From", "whatsapp:+263771234567")
	form.Set("Body", "hi")

	rec := postWebhook(t, h, "/whatsapp/webhook", form, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusCallbackAcknowledged(t *testing.T) {
	h := NewWebhookHandler(&routerMock{}, &validatorMock{accept: true}, nil)

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("MessageStatus", "failed")
	form.Set("ErrorCode", "63016")

	rec := postWebhook(t, h, "/whatsapp/status", form, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
