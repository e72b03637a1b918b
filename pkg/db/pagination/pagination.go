// Package pagination implements cursor (keyset) pagination for list endpoints
// and background sweeps.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var ErrInvalidPageToken = errors.New("invalid page token")

type Pagination struct {
	PageToken string
	PageSize  int
}

// Cursor is the decoded form of a page token.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	HasMore       bool   `json:"has_more"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidPageToken
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidPageToken
	}
	return c, nil
}

// BuildCursorPageInfo inspects an over-fetched result set (pageSize+1 rows)
// and derives the next page token from the last visible item.
func BuildCursorPageInfo[T any](items []T, pageSize int32, token func(item T) string) *PageInfo {
	if pageSize <= 0 {
		return nil
	}
	info := &PageInfo{}
	if len(items) > int(pageSize) {
		info.HasMore = true
		info.NextPageToken = token(items[pageSize-1])
	}
	return info
}
