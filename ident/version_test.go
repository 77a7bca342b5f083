package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionStringRoundTrip(t *testing.T) {
	v, err := Parse("app 1.2, lib 3.0.1")
	require.NoError(t, err)
	reparsed, err := Parse(v.String())
	require.NoError(t, err)
	assert.Equal(t, v.String(), reparsed.String())
}

func TestVersionStringCompareEquals(t *testing.T) {
	a, err := Parse("app 1.2")
	require.NoError(t, err)
	b, err := Parse("app 1.2.0")
	require.NoError(t, err)
	assert.Equal(t, Equals, a.Compare(b))
}

func TestVersionStringCompareGreaterLower(t *testing.T) {
	a, err := Parse("app 1.2")
	require.NoError(t, err)
	b, err := Parse("app 1.1")
	require.NoError(t, err)
	assert.Equal(t, Greater, a.Compare(b))
	assert.Equal(t, Lower, b.Compare(a))
}

func TestVersionStringIgnoresUnsharedTags(t *testing.T) {
	a, err := Parse("app 1.2, extra 9.9")
	require.NoError(t, err)
	b, err := Parse("app 1.2")
	require.NoError(t, err)
	assert.Equal(t, Equals, a.Compare(b))
}

func TestVersionStringInconsistent(t *testing.T) {
	a, err := Parse("app 1.2, lib 3.0")
	require.NoError(t, err)
	b, err := Parse("app 1.1, lib 3.1")
	require.NoError(t, err)
	assert.Equal(t, Inconsistent, a.Compare(b))
}

func TestVersionStringParseMalformed(t *testing.T) {
	_, err := Parse("app")
	require.Error(t, err)

	_, err = Parse("app x.y")
	require.Error(t, err)

	_, err = Parse("1bad 1.0")
	require.Error(t, err)
}
