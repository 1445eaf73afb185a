package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on webhook deliveries
const SignatureHeader = "Payment-Signature"

var (
	ErrSignatureMissing   = errors.New("signature header is missing or malformed")
	ErrSignatureMismatch  = errors.New("signature does not match payload")
	ErrSignatureTimestamp = errors.New("signature timestamp outside tolerance")
)

// Sign computes the v1 signature of body at timestamp t
func Sign(secret string, t time.Time, body []byte) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(secret, ts, body)
}

// VerifySignature checks header against body. Several v1 entries may be
// present while the secret is being rotated; any match is accepted.
func VerifySignature(secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	var ts string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts == "" || len(candidates) == 0 {
		return ErrSignatureMissing
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrSignatureMissing
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureTimestamp
		}
	}

	expected := []byte(computeSignature(secret, ts, body))
	for _, c := range candidates {
		if hmac.Equal(expected, []byte(c)) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

func computeSignature(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
