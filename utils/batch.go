// utils/batch.go
package utils

import (
	"errors"
	"strconv"
)

var ErrNoBatchToken = errors.New("email does not carry a batch year")

// BatchFromEmail derives the admission batch from the two-digit year token
// in a student address: zihad2107071@stud.kuet.ac.bd is batch 2021, token
// "21".
func BatchFromEmail(email string) (int, string, error) {
	m := batchTokenRegex.FindStringSubmatch(EmailPrefix(email))
	if m == nil {
		return 0, "", ErrNoBatchToken
	}
	yy, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", ErrNoBatchToken
	}
	return 2000 + yy, m[1], nil
}
