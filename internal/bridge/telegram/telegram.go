// Package telegram verifies Telegram Mini App init-data using the
// double-HMAC-SHA256 scheme Telegram's bot platform publishes.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
)

const hmacKeyConstant = "WebAppData"

// VerifyInitData checks a Telegram Mini App initData string against the
// bot token, following the exact double-HMAC recipe: first derive a
// secret key as HMAC-SHA256("WebAppData", botToken), then compute
// HMAC-SHA256(secretKey, checkString) over the sorted "key=value\n"
// pairs excluding "hash" itself, and compare hex digests.
func VerifyInitData(initData, botToken string) (url.Values, error) {
	if initData == "" {
		return nil, apperr.Unauthorized("empty telegram init data")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, apperr.Unauthorized("malformed telegram init data: %v", err)
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, apperr.Unauthorized("telegram init data missing hash")
	}

	pairs := make([]string, 0, len(values))
	for k, vs := range values {
		if k == "hash" {
			continue
		}
		for _, v := range vs {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
		}
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secretMAC := hmac.New(sha256.New, []byte(hmacKeyConstant))
	secretMAC.Write([]byte(botToken))
	secretKey := secretMAC.Sum(nil)

	dataMAC := hmac.New(sha256.New, secretKey)
	dataMAC.Write([]byte(checkString))
	computedHash := hex.EncodeToString(dataMAC.Sum(nil))

	if !hmac.Equal([]byte(computedHash), []byte(providedHash)) {
		return nil, apperr.Unauthorized("telegram init data hash mismatch")
	}
	return values, nil
}
