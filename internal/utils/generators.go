package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// codeAlphabet omits 0/O/1/I to keep codes readable over the phone.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateReservationCode returns a short human-readable code like
// "R-7FQ3KD". Uniqueness is enforced by the database constraint.
func GenerateReservationCode() string {
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// Extremely unlikely; fall back to a timestamp digit.
			buf[i] = codeAlphabet[time.Now().UnixNano()%int64(len(codeAlphabet))]
			continue
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("R-%s", buf)
}

// GeneratePaymentID returns an internal payment record id.
func GeneratePaymentID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("pay_%d_%06d", timestamp, randomNum.Int64())
}
