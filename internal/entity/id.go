// Package entity decodes knowledge-base entity identifiers such as "Q42" or "P31".
package entity

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidIdentifier indicates an identifier that is empty, non-numeric after its
// prefix letter, or zero.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ItemID is the numeric part of an entity identifier.
type ItemID uint64

// ParseID strips the leading prefix character and parses the remainder as an
// unsigned integer. Zero is rejected.
func ParseID(id string) (ItemID, error) {
	if len(id) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	n, err := strconv.ParseUint(id[1:], 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return ItemID(n), nil
}
