package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/conversation"
	"github.com/drivelink/drivelink-api/internal/messenger"
)

type messageRouter interface {
	HandleMessage(ctx context.Context, msg conversation.InboundMessage) (string, error)
}

type signatureValidator interface {
	ValidRequest(url string, form map[string]string, signature string) bool
}

// WebhookHandler terminates the Twilio WhatsApp webhooks. Every inbound
// message is answered synchronously with TwiML; proactive messages go out
// through the notifier instead.
type WebhookHandler struct {
	router    messageRouter
	validator signatureValidator
	logger    *zap.Logger
}

// NewWebhookHandler constructs a webhook handler.
func NewWebhookHandler(router messageRouter, validator signatureValidator, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{router: router, validator: validator, logger: logger}
}

// Receive handles POST /whatsapp/webhook.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	form := flattenForm(c.Request.PostForm)

	if !h.validator.ValidRequest(requestURL(c.Request), form, c.GetHeader("X-Twilio-Signature")) {
		h.logger.Sugar().Warnw("webhook signature rejected", "remote_addr", c.ClientIP())
		c.Status(http.StatusForbidden)
		return
	}

	msg := conversation.InboundMessage{
		From:          form["From"],
		Body:          form["Body"],
		ButtonText:    form["ButtonText"],
		ButtonPayload: form["ButtonPayload"],
		MessageSid:    form["MessageSid"],
	}

	reply, err := h.router.HandleMessage(c.Request.Context(), msg)
	if err != nil {
		h.logger.Sugar().Errorw("webhook processing failed", "message_sid", msg.MessageSid, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	twiml, err := messenger.RenderTwiML(reply)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(twiml))
}

// Status handles POST /whatsapp/status, the delivery status callback.
// Failures are logged for the operators; Twilio only needs the 204.
func (h *WebhookHandler) Status(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	form := flattenForm(c.Request.PostForm)

	status := form["MessageStatus"]
	switch status {
	case "failed", "undelivered":
		h.logger.Sugar().Warnw("outbound message not delivered",
			"message_sid", form["MessageSid"],
			"status", status,
			"error_code", form["ErrorCode"],
		)
	default:
		h.logger.Sugar().Debugw("delivery status", "message_sid", form["MessageSid"], "status", status)
	}
	c.Status(http.StatusNoContent)
}

func flattenForm(values map[string][]string) map[string]string {
	form := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			form[key] = vals[0]
		}
	}
	return form
}

// requestURL reconstructs the URL Twilio signed, honoring the proxy
// headers set by the ingress.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
