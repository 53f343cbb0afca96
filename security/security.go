package security

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// DefaultCharset is the charset used for OTP codes unless configured otherwise.
const DefaultCharset = "0123456789"

var ErrInvalidCodeShape = errors.New("otp code length and charset must be non-empty")

// GenerateCode draws length characters uniformly from charset using
// crypto/rand. Characters are picked independently so every code in
// charset^length is equally likely.
func GenerateCode(charset string, length int) (string, error) {
	if length <= 0 || len(charset) == 0 {
		return "", ErrInvalidCodeShape
	}
	max := big.NewInt(int64(len(charset)))
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}
