package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drivelink/drivelink-api/internal/models"
)

func TestParseResetWordsInAnyState(t *testing.T) {
	parser := NewParser()
	states := []string{
		models.StateMainMenu,
		models.StateAwaitingDuration,
		models.StateAwaitingBookingSlot,
		models.StateAwaitingCancelSelect,
		models.StateAwaitingLocation,
	}
	words := []string{"reset", "restart", "start", "clear", "menu", "back", "home", " MENU "}
	for _, state := range states {
		for _, word := range words {
			intent := parser.Parse(word, state)
			assert.Equal(t, IntentReset, intent.Kind, "%q in %s", word, state)
		}
	}
}

func TestParseIndexedForms(t *testing.T) {
	parser := NewParser()

	intent := parser.Parse("cancel 2", models.StateMainMenu)
	assert.Equal(t, IntentCancelByIndex, intent.Kind)
	assert.Equal(t, 2, intent.N)

	intent = parser.Parse("book 1", models.StateMainMenu)
	assert.Equal(t, IntentBookByIndex, intent.Kind)
	assert.Equal(t, 1, intent.N)

	intent = parser.Parse("select 3", models.StateMainMenu)
	assert.Equal(t, IntentSelectInstructor, intent.Kind)
	assert.Equal(t, 3, intent.N)

	intent = parser.Parse("cancel 0", models.StateMainMenu)
	assert.NotEqual(t, IntentCancelByIndex, intent.Kind)
}

func TestParseDurationState(t *testing.T) {
	parser := NewParser()

	cases := map[string]int{"1": 30, "30": 30, "2": 60, "60": 60}
	for text, want := range cases {
		intent := parser.Parse(text, models.StateAwaitingDuration)
		assert.Equal(t, IntentDuration, intent.Kind, text)
		assert.Equal(t, want, intent.N, text)
	}

	assert.Equal(t, IntentReset, parser.Parse("3", models.StateAwaitingDuration).Kind)
}

func TestParseBareDigitByState(t *testing.T) {
	parser := NewParser()

	intent := parser.Parse("4", models.StateAwaitingBookingSlot)
	assert.Equal(t, IntentBookByIndex, intent.Kind)
	assert.Equal(t, 4, intent.N)

	intent = parser.Parse("2", models.StateAwaitingCancelSelect)
	assert.Equal(t, IntentCancelByIndex, intent.Kind)

	intent = parser.Parse("1", models.StateAwaitingInstructor)
	assert.Equal(t, IntentSelectInstructor, intent.Kind)

	intent = parser.Parse("3", models.StateMainMenu)
	assert.Equal(t, IntentMenuChoice, intent.Kind)
	assert.Equal(t, 3, intent.N)

	intent = parser.Parse("7", models.StateMainMenu)
	assert.NotEqual(t, IntentMenuChoice, intent.Kind)
}

func TestParseDeepLink(t *testing.T) {
	parser := NewParser()

	intent := parser.Parse("https://wa.me/263771234567?text=book%20a%20lesson", models.StateMainMenu)
	assert.Equal(t, IntentKeyword, intent.Kind)
	assert.Equal(t, CmdBook, intent.Keyword)
}

func TestParseKeywords(t *testing.T) {
	parser := NewParser()

	cases := map[string]string{
		"hi":                      CmdGreeting,
		"hello there":             CmdGreeting,
		"my lessons":              CmdLessons,
		"show my schedule please": CmdSchedule,
		"progress":                CmdProgress,
		"profile":                 CmdProfile,
		"instructors":             CmdInstructors,
		"check balance":           CmdBalance,
		"i want to book":          CmdBook,
		"scheduling":              CmdSchedule,
		"my students":             CmdStudents,
		"today":                   CmdToday,
		"which car do i have":     CmdVehicle,
	}
	for text, want := range cases {
		intent := parser.Parse(text, models.StateMainMenu)
		assert.Equal(t, IntentKeyword, intent.Kind, text)
		assert.Equal(t, want, intent.Keyword, text)
	}
}

func TestParsePrefixMatchIsDeterministic(t *testing.T) {
	parser := NewParser()

	// "pro..." words resolve to progress ahead of profile, always.
	intent := parser.Parse("prog", models.StateMainMenu)
	assert.Equal(t, CmdProgress, intent.Keyword)
}

func TestParseUnrecognized(t *testing.T) {
	parser := NewParser()

	intent := parser.Parse("zzz qqq", models.StateMainMenu)
	assert.Equal(t, IntentUnrecognized, intent.Kind)
	assert.Equal(t, "zzz qqq", intent.Text)
}
