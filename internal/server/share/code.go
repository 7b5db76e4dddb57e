package share

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	// Share codes are drawn uniformly from [1000, 9999].
	codeMin       = 1000
	codeSpaceSize = 9000

	// Random draws beyond this count mean the live set is crowded
	// enough to switch to a deterministic scan.
	maxCodeAttempts = 32
)

// randomCodeIndex draws one candidate position in [0, codeSpaceSize).
func randomCodeIndex() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpaceSize))
	if err != nil {
		return 0, fmt.Errorf("crypto/rand failure: %w", err)
	}
	return n.Int64(), nil
}

// codeAt maps a position to its 4-digit code string.
func codeAt(index int64) string {
	return strconv.FormatInt(codeMin+index, 10)
}
