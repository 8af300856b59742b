package conversation

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/drivelink/drivelink-api/internal/models"
)

// Intent kinds.
const (
	IntentReset            = "reset"
	IntentMenuChoice       = "menu_choice"
	IntentDuration         = "duration"
	IntentBookByIndex      = "book_by_index"
	IntentCancelByIndex    = "cancel_by_index"
	IntentSelectInstructor = "select_instructor"
	IntentKeyword          = "keyword"
	IntentUnrecognized     = "unrecognized"
)

// Command keywords the parser can resolve. Reset words never reach here;
// they short-circuit to IntentReset first.
const (
	CmdGreeting    = "greeting"
	CmdLessons     = "lessons"
	CmdSchedule    = "schedule"
	CmdProgress    = "progress"
	CmdCancel      = "cancel"
	CmdHelp        = "help"
	CmdInstructors = "instructors"
	CmdProfile     = "profile"
	CmdLocation    = "location"
	CmdBalance     = "balance"
	CmdFund        = "fund"
	CmdEmergency   = "emergency"
	CmdBook        = "book"
	CmdEmail       = "email"
	CmdStudents    = "students"
	CmdToday       = "today"
	CmdVehicle     = "vehicle"
)

// Intent is the canonical form of one inbound message. N carries the number
// for indexed intents, Keyword the resolved command, Text the original input
// for unrecognized messages and free-text states.
type Intent struct {
	Kind    string
	N       int
	Keyword string
	Text    string
}

var resetWords = map[string]bool{
	"reset": true, "restart": true, "start": true, "clear": true,
	"menu": true, "back": true, "home": true,
}

// commandWords maps each recognizable word to its canonical command. Longer
// synonyms are also matched by substring and by shared 3-letter prefix.
var commandWords = map[string]string{
	"hi": CmdGreeting, "hello": CmdGreeting, "hey": CmdGreeting,
	"morning": CmdGreeting, "afternoon": CmdGreeting, "evening": CmdGreeting,
	"lessons": CmdLessons, "lesson": CmdLessons,
	"schedule": CmdSchedule, "upcoming": CmdSchedule,
	"progress": CmdProgress,
	"cancel":   CmdCancel,
	"help":     CmdHelp,
	"instructors": CmdInstructors, "instructor": CmdInstructors,
	"profile":  CmdProfile,
	"location": CmdLocation, "area": CmdLocation,
	"balance": CmdBalance,
	"fund":    CmdFund, "topup": CmdFund, "pay": CmdFund,
	"emergency": CmdEmergency, "sos": CmdEmergency,
	"book": CmdBook, "booking": CmdBook,
	"email":    CmdEmail,
	"students": CmdStudents, "student": CmdStudents,
	"today":    CmdToday,
	"vehicle":  CmdVehicle, "car": CmdVehicle,
}

// commandOrder fixes the lookup order for the fuzzy passes, so words with a
// shared prefix ("progress"/"profile") always resolve the same way.
var commandOrder = []string{
	"lessons", "lesson", "schedule", "upcoming", "progress", "profile",
	"cancel", "help", "instructors", "instructor", "location", "area",
	"balance", "fund", "topup", "emergency", "email", "booking", "book",
	"students", "student", "today", "vehicle",
	"hello", "morning", "afternoon", "evening",
}

var deepLinkPattern = regexp.MustCompile(`wa\.me/[^\s?]*\?[^\s]*?text=([^&\s]+)`)

// Parser turns raw inbound text into an Intent. Parsing is state-aware:
// bare digits mean different things in different conversation states.
type Parser struct{}

// NewParser constructs a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse resolves the text under the given conversation state tag.
func (p *Parser) Parse(raw, state string) Intent {
	text := strings.ToLower(strings.TrimSpace(extractDeepLinkText(raw)))
	if text == "" {
		return Intent{Kind: IntentUnrecognized, Text: raw}
	}

	if resetWords[text] {
		return Intent{Kind: IntentReset}
	}

	if intent, ok := parseIndexedForm(text); ok {
		return intent
	}

	if intent, ok := parseStateDigit(text, state); ok {
		return intent
	}

	if cmd, ok := matchCommand(text); ok {
		return Intent{Kind: IntentKeyword, Keyword: cmd, Text: text}
	}

	return Intent{Kind: IntentUnrecognized, Text: text}
}

// extractDeepLinkText unwraps the text parameter of a wa.me deep link. The
// original text passes through untouched when no link is present.
func extractDeepLinkText(raw string) string {
	match := deepLinkPattern.FindStringSubmatch(raw)
	if match == nil {
		return raw
	}
	decoded, err := url.QueryUnescape(match[1])
	if err != nil {
		return raw
	}
	return decoded
}

// parseIndexedForm handles "cancel N", "book N" and "select N".
func parseIndexedForm(text string) (Intent, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Intent{}, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 {
		return Intent{}, false
	}
	switch fields[0] {
	case "cancel":
		return Intent{Kind: IntentCancelByIndex, N: n}, true
	case "book":
		return Intent{Kind: IntentBookByIndex, N: n}, true
	case "select":
		return Intent{Kind: IntentSelectInstructor, N: n}, true
	case "confirm", "complete":
		// Instructor forms share the shape; the flow decides what they mean.
		return Intent{Kind: IntentKeyword, Keyword: fields[0], N: n}, true
	}
	return Intent{}, false
}

// parseStateDigit interprets bare digits according to the current state.
func parseStateDigit(text, state string) (Intent, bool) {
	switch state {
	case models.StateAwaitingDuration:
		switch text {
		case "1", "30":
			return Intent{Kind: IntentDuration, N: 30}, true
		case "2", "60":
			return Intent{Kind: IntentDuration, N: 60}, true
		case "3":
			return Intent{Kind: IntentReset}, true
		}
		return Intent{}, false
	case models.StateAwaitingBookingSlot:
		if n, err := strconv.Atoi(text); err == nil && n >= 1 {
			return Intent{Kind: IntentBookByIndex, N: n}, true
		}
		return Intent{}, false
	case models.StateAwaitingCancelSelect:
		if n, err := strconv.Atoi(text); err == nil && n >= 1 {
			return Intent{Kind: IntentCancelByIndex, N: n}, true
		}
		return Intent{}, false
	case models.StateAwaitingInstructor:
		if n, err := strconv.Atoi(text); err == nil && n >= 1 {
			return Intent{Kind: IntentSelectInstructor, N: n}, true
		}
		return Intent{}, false
	case models.StateMainMenu:
		if len(text) == 1 && text[0] >= '1' && text[0] <= '5' {
			return Intent{Kind: IntentMenuChoice, N: int(text[0] - '0')}, true
		}
	}
	return Intent{}, false
}

// matchCommand looks the text up in the command dictionary. A command word
// matches as an exact word, as a substring, or by sharing its first three
// letters with a word of the message.
func matchCommand(text string) (string, bool) {
	words := strings.Fields(text)
	for _, word := range words {
		if cmd, ok := commandWords[word]; ok {
			return cmd, true
		}
	}
	for _, keyword := range commandOrder {
		if len(keyword) >= 4 && strings.Contains(text, keyword) {
			return commandWords[keyword], true
		}
	}
	for _, word := range words {
		if len(word) < 3 {
			continue
		}
		for _, keyword := range commandOrder {
			if len(keyword) >= 4 && word[:3] == keyword[:3] {
				return commandWords[keyword], true
			}
		}
	}
	return "", false
}
