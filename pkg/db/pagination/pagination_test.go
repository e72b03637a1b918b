package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "123456789", CreatedAt: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "123456789", decoded.ID)
	assert.Equal(t, "2026-01-01T00:00:00Z", decoded.CreatedAt)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("not base64 ***")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	// Valid base64, invalid JSON.
	_, err = DecodeCursor("bm90LWpzb24")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfo(t *testing.T) {
	token := func(item int) string { return "t" }

	// Over-fetched page: has more, token from the last visible item.
	info := BuildCursorPageInfo([]int{1, 2, 3}, 2, token)
	require.NotNil(t, info)
	assert.True(t, info.HasMore)
	assert.Equal(t, "t", info.NextPageToken)

	// Exact page: no more.
	info = BuildCursorPageInfo([]int{1, 2}, 2, token)
	require.NotNil(t, info)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	assert.Nil(t, BuildCursorPageInfo([]int{1}, 0, token))
}
