package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/drivelink/drivelink-api/pkg/errors"
	"github.com/drivelink/drivelink-api/pkg/phone"
	"github.com/drivelink/drivelink-api/pkg/response"
)

type outboundSender interface {
	Send(to, body string) error
}

// MessageHandler exposes the internal send API used by the office staff
// tooling to push one-off WhatsApp messages.
type MessageHandler struct {
	outbound outboundSender
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(outbound outboundSender) *MessageHandler {
	return &MessageHandler{outbound: outbound}
}

type sendMessageRequest struct {
	To   string `json:"to" binding:"required"`
	Body string `json:"body" binding:"required,max=1600"`
}

// Send handles POST /whatsapp/send.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	to := phone.Normalize(req.To)
	if err := h.outbound.Send(to, req.Body); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"to": to, "queued": true})
}
