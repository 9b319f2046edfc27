package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ludo-arena-backend/internal/config"
)

const testMerchantKey = "0123456789abcdef"

func TestSignatureRoundTrip(t *testing.T) {
	payload := `{"mid":"TEST","orderId":"abc-123"}`

	signature, err := GenerateSignature(payload, testMerchantKey)
	require.NoError(t, err)
	assert.True(t, VerifySignature(payload, testMerchantKey, signature))
}

func TestSignatureRejectsTamperedPayload(t *testing.T) {
	signature, err := GenerateSignature("amount=500.00|order=1", testMerchantKey)
	require.NoError(t, err)

	assert.False(t, VerifySignature("amount=900.00|order=1", testMerchantKey, signature))
}

func TestSignatureRejectsWrongKey(t *testing.T) {
	signature, err := GenerateSignature("payload", testMerchantKey)
	require.NoError(t, err)

	assert.False(t, VerifySignature("payload", "another-key-here", signature))
}

func TestSignatureRejectsGarbage(t *testing.T) {
	assert.False(t, VerifySignature("payload", testMerchantKey, "not-base64!!"))
	assert.False(t, VerifySignature("payload", testMerchantKey, ""))
}

func TestVerifyCallback(t *testing.T) {
	client := NewClient(config.PaytmConfig{MerchantKey: testMerchantKey})

	params := map[string]string{
		"ORDERID":   "abc-123",
		"STATUS":    "TXN_SUCCESS",
		"TXNAMOUNT": "500.00",
		"TXNID":     "T999",
	}
	checksum, err := GenerateSignature(joinParams(params), testMerchantKey)
	require.NoError(t, err)
	params["CHECKSUMHASH"] = checksum

	require.NoError(t, client.VerifyCallback(params))

	// Changing any signed parameter invalidates the checksum.
	params["TXNAMOUNT"] = "900.00"
	assert.ErrorIs(t, client.VerifyCallback(params), ErrChecksumMismatch)

	params["TXNAMOUNT"] = "500.00"
	require.NoError(t, client.VerifyCallback(params))

	delete(params, "CHECKSUMHASH")
	assert.ErrorIs(t, client.VerifyCallback(params), ErrChecksumMismatch)
}

func TestInitiateTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.String(), "orderId=order-1")

		var envelope struct {
			Body json.RawMessage `json:"body"`
			Head struct {
				Signature string `json:"signature"`
			} `json:"head"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.True(t, VerifySignature(string(envelope.Body), testMerchantKey, envelope.Head.Signature))

		var body struct {
			TxnAmount struct {
				Value string `json:"value"`
			} `json:"txnAmount"`
		}
		require.NoError(t, json.Unmarshal(envelope.Body, &body))
		assert.Equal(t, "500.00", body.TxnAmount.Value)

		json.NewEncoder(w).Encode(map[string]any{
			"body": map[string]any{
				"resultInfo": map[string]string{"resultStatus": "S"},
				"txnToken":   "tok-1",
			},
		})
	}))
	defer server.Close()

	client := NewClient(config.PaytmConfig{
		MerchantID:  "TESTMID",
		MerchantKey: testMerchantKey,
		Website:     "DEFAULT",
		BaseURL:     server.URL,
	})

	resp, err := client.InitiateTransaction(context.Background(), "order-1", 7, 50000)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.TxnToken)
	assert.Equal(t, "TESTMID", resp.MerchantID)
}

func TestInitiateTransactionGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"body": map[string]any{
				"resultInfo": map[string]string{"resultStatus": "F", "resultMsg": "Invalid MID"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(config.PaytmConfig{MerchantID: "BAD", MerchantKey: testMerchantKey, BaseURL: server.URL})

	_, err := client.InitiateTransaction(context.Background(), "order-2", 7, 1000)
	assert.ErrorIs(t, err, ErrGatewayRequest)
}

func TestFormatRupees(t *testing.T) {
	assert.Equal(t, "500.00", formatRupees(50000))
	assert.Equal(t, "0.01", formatRupees(1))
	assert.Equal(t, "12.34", formatRupees(1234))
}
