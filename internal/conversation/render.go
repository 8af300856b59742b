package conversation

import (
	"fmt"
	"strings"
)

// Reply is the logical response a flow handler produces. Options render as
// a numbered list; a bare body renders as-is.
type Reply struct {
	Body    string
	Options []string
}

// Render flattens the reply into one plain-text message. The numbered form
// works the same whether or not the transport supports buttons.
func (r Reply) Render() string {
	if len(r.Options) == 0 {
		return r.Body
	}

	var b strings.Builder
	if r.Body != "" {
		b.WriteString(r.Body)
		b.WriteString("\n\n")
	}
	for i, option := range r.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, option)
	}
	fmt.Fprintf(&b, "\nReply with 1-%d", len(r.Options))
	return b.String()
}

// Text builds a plain reply.
func Text(body string) Reply {
	return Reply{Body: body}
}

// TextF builds a plain reply from a format string.
func TextF(format string, args ...interface{}) Reply {
	return Reply{Body: fmt.Sprintf(format, args...)}
}
