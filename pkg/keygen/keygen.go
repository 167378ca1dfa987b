package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	upperAlphaNumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	tradeReferencePrefix = "BO"
	tradeReferenceLength = 10
)

// TradeReference generates a human readable trade ticket reference
// Format: BO<yyyymmdd>-<10 characters uppercase alphanumeric>, e.g. BO20261014-7KQ2M0ZP4A
func TradeReference(at time.Time) (string, error) {
	suffix, err := randomString(tradeReferenceLength, upperAlphaNumeric)
	if err != nil {
		return "", fmt.Errorf("failed to generate trade reference: %w", err)
	}
	return fmt.Sprintf("%s%s-%s", tradeReferencePrefix, at.UTC().Format("20060102"), suffix), nil
}

// randomString generates a random string of given length from the given charset
func randomString(length int, charset string) (string, error) {
	result := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}

	return string(result), nil
}
