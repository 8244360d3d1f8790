package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/gateAuth/refresh"
)

const (
	collectionFormatVersionCurrent = 1
)

// ErrCorrupt is returned when a stored collection cannot be decoded.
var ErrCorrupt = errors.New("refresh collection corrupt")

// Encode serializes a collection as a one-byte schema version followed by
// its JSON body.
func Encode(c *refresh.Collection) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil collection")
	}
	if c.PrincipalID == "" {
		return nil, errors.New("collection principal id required")
	}

	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, collectionFormatVersionCurrent)
	return append(out, body...), nil
}

// Decode reverses [Encode]. Unknown schema versions are rejected.
func Decode(data []byte) (*refresh.Collection, error) {
	if len(data) < 2 {
		return nil, ErrCorrupt
	}
	if data[0] != collectionFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupt, data[0])
	}

	var c refresh.Collection
	if err := json.Unmarshal(data[1:], &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if c.PrincipalID == "" {
		return nil, ErrCorrupt
	}
	for _, t := range c.Tokens {
		if t == nil || t.Token == "" {
			return nil, ErrCorrupt
		}
	}

	return &c, nil
}
