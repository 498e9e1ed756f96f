package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwax12/newbotcursor/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

type menuRecorder struct {
	calls [][]any
}

func (m *menuRecorder) SetCommands(opts ...interface{}) error {
	m.calls = append(m.calls, opts)
	return nil
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"}))
	require.NoError(t, reg.RegisterCommand("/credit", commands.Command{Handler: noop, Description: "Credit", AdminOnly: true}))
	require.NoError(t, reg.RegisterCommand("/rename", commands.Command{Handler: noop, Description: "Rename", Hidden: true, Aliases: []string{"mv"}}))
	return reg
}

func TestRegisterCommandRejects(t *testing.T) {
	reg := testRegistry(t)
	assert.ErrorIs(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"}), ErrInvalidCommand)
	assert.ErrorIs(t, reg.RegisterCommand("/x", commands.Command{Description: "x"}), ErrInvalidCommand)
	assert.ErrorIs(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "x"}), ErrDuplicate)

	require.NoError(t, reg.RegisterCallback("order_skip", noop))
	assert.ErrorIs(t, reg.RegisterCallback("order_skip", noop), ErrDuplicate)
	assert.ErrorIs(t, reg.RegisterCallback("", noop), ErrInvalidCallback)
	assert.Equal(t, []string{"order_skip"}, reg.Callbacks())
}

func TestLookupCommand(t *testing.T) {
	reg := testRegistry(t)
	key, _, ok := reg.LookupCommand("start")
	assert.True(t, ok)
	assert.Equal(t, "/start", key)

	key, cmd, ok := reg.LookupCommand("/mv")
	assert.True(t, ok)
	assert.Equal(t, "/rename", key)
	assert.True(t, cmd.Hidden)

	_, _, ok = reg.LookupCommand("/nope")
	assert.False(t, ok)
}

func TestInitBotCommandsScopes(t *testing.T) {
	reg := testRegistry(t)

	m := &menuRecorder{}
	InitBotCommands(m, reg, 0)
	require.Len(t, m.calls, 1)
	assert.Equal(t, []tele.Command{{Text: "start", Description: "Start"}}, m.calls[0][0])

	m = &menuRecorder{}
	InitBotCommands(m, reg, 42)
	require.Len(t, m.calls, 2)
	assert.Equal(t, []tele.Command{
		{Text: "credit", Description: "Credit"},
		{Text: "start", Description: "Start"},
	}, m.calls[1][0])
	assert.Equal(t, tele.CommandScope{Type: tele.CommandScopeChat, ChatID: 42}, m.calls[1][1])
}
