package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
)

const (
	minCodeDigits = 4
	maxCodeDigits = 10
)

// NewCode returns a uniformly random numeric challenge code with exactly
// digits digits and a non-zero leading digit. Both bounds are inclusive: a
// 4-digit code is drawn from 1000 through 9999, 9000 values.
func NewCode(digits int) (string, error) {
	if digits < minCodeDigits || digits > maxCodeDigits {
		return "", errors.New("invalid code digits")
	}

	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}

	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(low+n.Int64(), 10), nil
}
