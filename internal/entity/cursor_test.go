package entity

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCursor_Roundtrip(t *testing.T) {
	orig := PageCursor{CreatedAt: 1700000000123, MessageId: "00000000000000012345"}

	decoded, err := DecodePageCursor(orig.Encode())
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestPageCursor_MessageIdWithColon(t *testing.T) {
	// Only the first ":" splits, so ids containing ":" survive
	orig := PageCursor{CreatedAt: 42, MessageId: "a:b:c"}

	decoded, err := DecodePageCursor(orig.Encode())
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestDecodePageCursor_Malformed(t *testing.T) {
	cases := []string{
		"not-base64!!!",
		base64.RawURLEncoding.EncodeToString([]byte("nocolon")),
		base64.RawURLEncoding.EncodeToString([]byte(":msgonly")),
		base64.RawURLEncoding.EncodeToString([]byte("123:")),
		base64.RawURLEncoding.EncodeToString([]byte("notanumber:msg")),
	}

	for _, c := range cases {
		_, err := DecodePageCursor(c)
		assert.Error(t, err, "expected %q to be rejected", c)
	}
}
