package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	frame := []byte{0x68, 0x41, 0x00, 0x02, 0x00, 0x04, 0xA4, 0x14, 0x50, 0x01, 0xAF, 0x16}
	e := Wrap("303930306350729d", frame)
	assert.Equal(t, "6350729d", e.DevAddr)

	raw := Marshal(e)
	eui, decoded, err := Unwrap(raw)
	assert.NoError(t, err)
	assert.Equal(t, "303930306350729d", eui)
	assert.Equal(t, frame, decoded)
}

func TestUnwrapMissingField(t *testing.T) {
	_, _, err := Unwrap([]byte(`{"devEui":"abc"}`))
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestUnwrapBadJSON(t *testing.T) {
	_, _, err := Unwrap([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadJSON)
}

func TestTopicMatchesEUI(t *testing.T) {
	assert.True(t, TopicMatchesEUI("application/x/device/303930306350729d/command/down", "303930306350729d"))
	assert.False(t, TopicMatchesEUI("application/x/device/other/command/down", "303930306350729d"))
}

func TestShortEUIDevAddr(t *testing.T) {
	e := Wrap("abcd", []byte{0x00})
	assert.Equal(t, "abcd", e.DevAddr)
}
