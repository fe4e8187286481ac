package id

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestNew_IsValidULID(t *testing.T) {
	_, err := ulid.Parse(New())
	assert.NoError(t, err)
}

func TestDerive_StableAndDistinct(t *testing.T) {
	a := Derive("rem", "user-1", "entry-1", "2026-10-15")
	assert.Equal(t, a, Derive("rem", "user-1", "entry-1", "2026-10-15"))
	assert.NotEqual(t, a, Derive("rem", "user-1", "entry-1", "2026-10-16"))
	assert.NotEqual(t, Derive("rem", "ab", "c"), Derive("rem", "a", "bc"))
	assert.Len(t, a, len("rem_")+24)
}
