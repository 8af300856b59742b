package messenger

import (
	"encoding/xml"
	"fmt"
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// RenderTwiML wraps a reply body in the TwiML envelope Twilio expects from a
// webhook. An empty body renders an empty <Response/>, which acknowledges
// the message without replying.
func RenderTwiML(body string) (string, error) {
	out, err := xml.Marshal(twimlResponse{Message: body})
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return xml.Header + string(out), nil
}
