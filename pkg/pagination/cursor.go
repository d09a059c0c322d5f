package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the opaque row pagination token (pre-encoding) with short field
// names to minimize payload size. It is serialized to minified JSON and
// encoded with URL-safe base64.
//
// Fields:
//   - v:   version of the cursor schema
//   - t:   table name
//   - tv:  table version the page was cut from
//   - off: row offset of the next page
//   - ps:  page size in rows
//   - iat: issued-at timestamp (unix seconds)
//   - ph:  optional hash of the filter condition the rows were drawn from
type Cursor struct {
	V   int    `json:"v"`
	T   string `json:"t"`
	Tv  uint64 `json:"tv"`
	Off int    `json:"off"`
	Ps  int    `json:"ps"`
	Iat int64  `json:"iat"`
	Ph  string `json:"ph,omitempty"`
}

// ErrStale reports a cursor issued against a different table state.
var ErrStale = errors.New("cursor: table changed since cursor was issued")

// EncodeCursor serializes and encodes the cursor as URL-safe base64 (without padding).
func EncodeCursor(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor decodes a URL-safe base64 token and parses the JSON cursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Check verifies that c still addresses table at version with the same
// predicate hash.
func (c *Cursor) Check(table string, version uint64, predicateHash string) error {
	if c.T != table {
		return fmt.Errorf("cursor: issued for table %q, not %q", c.T, table)
	}
	if c.Tv != version || c.Ph != predicateHash {
		return ErrStale
	}
	return nil
}

// PredicateHash returns a short stable hash of a filter condition, or "" for
// an empty one.
func PredicateHash(condition string) string {
	s := strings.TrimSpace(condition)
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// validate performs structural checks and defaulting.
func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.T) == "" {
		return errors.New("cursor: t (table) required")
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	return nil
}

// NextOffset computes the next offset after returning n rows.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}
