package upstream

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Signature is the header-level authenticator sent with every grab request.
type Signature struct {
	Sign      string
	RequestID string
	Timestamp string
}

// Sign computes md5("{key}_{requestID}_orderId={orderID}_{timestamp}") in hex.
func Sign(key, requestID, orderID, timestamp string) string {
	raw := key + "_" + requestID + "_orderId=" + orderID + "_" + timestamp
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newSignature(key, orderID, requestID string, now time.Time) Signature {
	ts := strconv.FormatInt(now.Unix(), 10)
	return Signature{
		Sign:      Sign(key, requestID, orderID, ts),
		RequestID: requestID,
		Timestamp: ts,
	}
}

// NewRequestID returns a UUID v4, or 32 hex chars when the UUID source fails.
func NewRequestID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
