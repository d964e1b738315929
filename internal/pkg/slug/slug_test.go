package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	assert.Equal(t, "free-cloud-credits", Make("  Free Cloud Credits! "))
	assert.Equal(t, "a-b", Make("--A__b--"))
	assert.Equal(t, "", Make("!!!"))
}

func TestRandom_InvalidLength(t *testing.T) {
	t.Parallel()

	_, err := Random(0)
	assert.Error(t, err)
}

func TestRandom_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	s, err := Random(10)
	require.NoError(t, err)
	require.Len(t, s, 10)
	for i := 0; i < len(s); i++ {
		assert.NotEqual(t, -1, strings.IndexByte(alphabet, s[i]), "invalid character %q", s[i])
	}
}

func TestRandom_UniqueWithinSmallBatch(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		s, err := Random(10)
		require.NoError(t, err)
		_, exists := seen[s]
		require.False(t, exists, "duplicate slug generated in small batch: %s", s)
		seen[s] = struct{}{}
	}
}

func TestWithSuffix(t *testing.T) {
	s, err := WithSuffix("free-cloud-credits", 6)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, "free-cloud-credits-"))
	assert.Len(t, s, len("free-cloud-credits-")+6)

	long, err := WithSuffix(strings.Repeat("a", 300), 6)
	require.NoError(t, err)
	assert.Len(t, long, MaxLength)

	bare, err := WithSuffix("", 6)
	require.NoError(t, err)
	assert.Len(t, bare, 6)
}
