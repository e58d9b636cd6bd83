package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a claim signature in constant time. Any input that cannot
// be verified is rejected.
func Verify(secret string, claim Claim) error {
	switch {
	case secret == "":
		return fmt.Errorf("%w: no secret configured", ErrVerification)
	case claim.OrderID == "", claim.PaymentID == "", claim.Signature == "":
		return fmt.Errorf("%w: incomplete claim", ErrVerification)
	}

	got, err := hex.DecodeString(claim.Signature)
	if err != nil || len(got) != sha256.Size {
		return fmt.Errorf("%w: malformed signature", ErrVerification)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(claim.OrderID + "|" + claim.PaymentID))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrVerification
	}
	return nil
}
