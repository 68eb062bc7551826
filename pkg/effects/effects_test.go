package effects

import (
	"log/slog"
	"os"
	"testing"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func TestTable_FireKnownAction(t *testing.T) {
	table := NewTable(testLogger())
	var got []string
	table.Register(adventure.ActionToast, func(p string) { got = append(got, p) })

	table.Fire(adventure.ActionToast, "hello")
	table.Fire(adventure.ActionToast, "again")

	assert.Equal(t, []string{"hello", "again"}, got)
}

func TestTable_FireUnknownActionDoesNotPanic(t *testing.T) {
	table := NewTable(testLogger())
	assert.NotPanics(t, func() {
		table.Fire(adventure.Action("explode"), "boom")
	})
}

func TestTable_SupportsAndActions(t *testing.T) {
	table := NewTable(nil).
		Register(adventure.ActionToast, func(string) {}).
		Register(adventure.ActionConfetti, func(string) {})

	assert.True(t, table.Supports(adventure.ActionToast))
	assert.False(t, table.Supports(adventure.ActionUnlock))
	assert.Equal(t, []adventure.Action{adventure.ActionConfetti, adventure.ActionToast}, table.Actions())
}

func TestUnsupported(t *testing.T) {
	table := NewTable(testLogger()).Register(adventure.ActionToast, func(string) {})
	rules := []adventure.Rule{
		{Action: adventure.ActionToast},
		{Action: adventure.ActionUnlock},
		{Action: adventure.ActionUnlock},
		{Action: adventure.ActionAdvanceTurn},
		{Action: adventure.ActionSurge},
		{Action: adventure.Action("explode")},
	}

	got := Unsupported(table, rules)
	assert.Equal(t, []adventure.Action{adventure.ActionUnlock, adventure.Action("explode")}, got)

	// A plain func cannot describe its support; nothing is reported.
	assert.Nil(t, Unsupported(Discard, rules))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Fire(adventure.ActionToast, "a")
	r.Fire(adventure.ActionToast, "a")
	r.Fire(adventure.ActionShake, "")

	assert.Equal(t, 2, r.Count(adventure.ActionToast, "a"))
	assert.Equal(t, 1, r.Count(adventure.ActionShake, ""))
	assert.Len(t, r.Fired(), 3)
}
