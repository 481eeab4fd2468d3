// Package shared provides small utilities with no better home, currently
// the random token generator used for job IDs.
package shared

import (
	"crypto/rand"
	"encoding/hex"
)

// JobIDLength is the number of random bytes in a job ID. The encoded ID is
// twice as long (two hex characters per byte).
const JobIDLength = 16

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them as a hexadecimal string, so the final string length will be
// twice the size.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewJobID generates a fresh job ID from the crypto random source.
func NewJobID() (string, error) {
	return MakeRandHexString(JobIDLength)
}
