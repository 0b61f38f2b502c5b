package telegram_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/telegram"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

// signInitData reproduces Telegram's double-HMAC scheme to build a
// validly signed initData string for fields (plain, undecoded values),
// the inverse of telegram.VerifyInitData. The check string is computed
// over the decoded "key=value" pairs, then the transmitted query string
// URL-encodes each value, mirroring what url.ParseQuery undoes on the
// verifying side.
func signInitData(fields map[string]string, botToken string) string {
	pairs := make([]string, 0, len(fields))
	for k, v := range fields {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secretMAC := hmac.New(sha256.New, []byte("WebAppData"))
	secretMAC.Write([]byte(botToken))
	secretKey := secretMAC.Sum(nil)

	dataMAC := hmac.New(sha256.New, secretKey)
	dataMAC.Write([]byte(checkString))
	hash := hex.EncodeToString(dataMAC.Sum(nil))

	encoded := make([]string, 0, len(fields)+1)
	for k, v := range fields {
		encoded = append(encoded, k+"="+url.QueryEscape(v))
	}
	encoded = append(encoded, "hash="+hash)
	return strings.Join(encoded, "&")
}

func TestVerifyInitData_AcceptsCorrectlySignedData(t *testing.T) {
	initData := signInitData(map[string]string{
		"auth_date": "1700000000",
		"query_id":  "AAH1234567890",
		"user":      `{"id":123456,"first_name":"Jane"}`,
	}, testBotToken)

	values, err := telegram.VerifyInitData(initData, testBotToken)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", values.Get("auth_date"))
	assert.Equal(t, `{"id":123456,"first_name":"Jane"}`, values.Get("user"))
}

func TestVerifyInitData_RejectsTamperedField(t *testing.T) {
	initData := signInitData(map[string]string{
		"auth_date": "1700000000",
		"user":      `{"id":123456}`,
	}, testBotToken)
	tampered := strings.Replace(initData, "auth_date=1700000000", "auth_date=1800000000", 1)

	_, err := telegram.VerifyInitData(tampered, testBotToken)
	assert.Error(t, err)
}

func TestVerifyInitData_RejectsWrongBotToken(t *testing.T) {
	initData := signInitData(map[string]string{"auth_date": "1700000000"}, testBotToken)

	_, err := telegram.VerifyInitData(initData, "999999:wrong-token")
	assert.Error(t, err)
}

func TestVerifyInitData_RejectsMissingHash(t *testing.T) {
	_, err := telegram.VerifyInitData("auth_date=1700000000", testBotToken)
	assert.Error(t, err)
}

func TestVerifyInitData_RejectsEmptyInput(t *testing.T) {
	_, err := telegram.VerifyInitData("", testBotToken)
	assert.Error(t, err)
}
