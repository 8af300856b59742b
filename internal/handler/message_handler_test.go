package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outboundMock struct {
	to   string
	body string
	err  error
}

func (m *outboundMock) Send(to, body string) error {
	if m.err != nil {
		return m.err
	}
	m.to = to
	m.body = body
	return nil
}

func postSend(t *testing.T, h *MessageHandler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/whatsapp/send", h.Send)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp/send", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSendQueuesNormalizedNumber(t *testing.T) {
	outbound := &outboundMock{}
	h := NewMessageHandler(outbound)

	rec := postSend(t, h, `{"to":"0771234567","body":"Your balance was topped up."}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "+263771234567", outbound.to)
	assert.Equal(t, "Your balance was topped up.", outbound.body)
}

func TestSendValidatesPayload(t *testing.T) {
	h := NewMessageHandler(&outboundMock{})

	rec := postSend(t, h, `{"to":"0771234567"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}
