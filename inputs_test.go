package qctask

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawMessage struct {
	binding string
	data    string
}

func (m rawMessage) Binding() string { return m.binding }

func (m rawMessage) Decode(out interface{}) error {
	return json.Unmarshal([]byte(m.data), out)
}

func TestInputs_Get(t *testing.T) {
	in := NewInputs(
		rawMessage{"tracks", `[1,2,3]`},
		rawMessage{"clusters", `{"n":1}`},
	)

	var tracks []int
	require.NoError(t, in.Get("tracks", &tracks))
	assert.Equal(t, []int{1, 2, 3}, tracks)
	assert.True(t, in.Has("clusters"))
	assert.False(t, in.Has("digits"))
	assert.Equal(t, []string{"clusters", "tracks"}, in.Bindings())
}

func TestInputs_Errors(t *testing.T) {
	in := NewInputs(rawMessage{"tracks", `not json`})

	var out []int
	err := in.Get("digits", &out)
	assert.ErrorIs(t, err, ErrInputNotFound)
	assert.Contains(t, err.Error(), "digits")

	err = in.Get("tracks", &out)
	assert.ErrorIs(t, err, ErrDecode)
	assert.False(t, errors.Is(err, ErrInputNotFound))
}

func TestInputs_LastMessageWins(t *testing.T) {
	in := NewInputs(rawMessage{"n", `1`}, rawMessage{"n", `2`})

	var n int
	require.NoError(t, in.Get("n", &n))
	assert.Equal(t, 2, n)
}

func TestContexts(t *testing.T) {
	in := NewInputs()
	pc := NewProcessingContext(in)
	assert.Same(t, in, pc.Inputs())

	ic := NewInitContext(nil, nil)
	assert.NotNil(t, ic.CustomParameters())
	assert.Empty(t, ic.CustomParameters())
}

func TestQCError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrStore.Context(cause)

	assert.Equal(t, "unable to store monitor objects: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSend)
	assert.Equal(t, "unable to store monitor objects", ErrStore.Error())

	wrapped := fmt.Errorf("cycle 3: %w", err)
	assert.ErrorIs(t, wrapped, ErrStore)
}
