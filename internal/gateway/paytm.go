// Package gateway implements the Paytm payment gateway client:
// checksum signing, checksum verification and transaction initiation.
package gateway

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"ludo-arena-backend/internal/config"
)

// Gateway errors.
var (
	ErrChecksumMismatch = errors.New("checksum verification failed")
	ErrGatewayRequest   = errors.New("gateway request failed")
)

const (
	saltLength = 4
	// Paytm's checksum scheme fixes the CBC initialization vector.
	checksumIV = "@@@@&&&&####$$$$"
)

// Client talks to the Paytm gateway. BaseURL is configurable so tests
// can point it at a local server.
type Client struct {
	cfg  config.PaytmConfig
	http *http.Client
}

// NewClient creates a new Paytm gateway client.
func NewClient(cfg config.PaytmConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// InitiateResponse is the subset of the gateway's transaction-token
// reply the service needs.
type InitiateResponse struct {
	TxnToken   string
	OrderID    string
	MerchantID string
}

// InitiateTransaction requests a transaction token for an order.
// amount is in paise; the gateway wants rupees with two decimals.
func (c *Client) InitiateTransaction(ctx context.Context, orderID string, userID, amount int64) (*InitiateResponse, error) {
	body := map[string]any{
		"requestType": "Payment",
		"mid":         c.cfg.MerchantID,
		"websiteName": c.cfg.Website,
		"orderId":     orderID,
		"callbackUrl": c.cfg.CallbackURL,
		"txnAmount": map[string]string{
			"value":    formatRupees(amount),
			"currency": "INR",
		},
		"userInfo": map[string]string{
			"custId": fmt.Sprintf("CUST_%d", userID),
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiate body: %w", err)
	}

	signature, err := GenerateSignature(string(payload), c.cfg.MerchantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign initiate body: %w", err)
	}

	envelope, err := json.Marshal(map[string]any{
		"body": json.RawMessage(payload),
		"head": map[string]string{"signature": signature},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiate envelope: %w", err)
	}

	url := fmt.Sprintf("%s/theia/api/v1/initiateTransaction?mid=%s&orderId=%s",
		c.cfg.BaseURL, c.cfg.MerchantID, orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to build initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrGatewayRequest, resp.StatusCode)
	}

	var reply struct {
		Body struct {
			ResultInfo struct {
				ResultStatus string `json:"resultStatus"`
				ResultMsg    string `json:"resultMsg"`
			} `json:"resultInfo"`
			TxnToken string `json:"txnToken"`
		} `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode initiate response: %w", err)
	}
	if reply.Body.ResultInfo.ResultStatus != "S" {
		return nil, fmt.Errorf("%w: %s", ErrGatewayRequest, reply.Body.ResultInfo.ResultMsg)
	}

	return &InitiateResponse{
		TxnToken:   reply.Body.TxnToken,
		OrderID:    orderID,
		MerchantID: c.cfg.MerchantID,
	}, nil
}

// VerifyCallback checks the CHECKSUMHASH over the callback form
// parameters against the merchant key.
func (c *Client) VerifyCallback(params map[string]string) error {
	checksum, ok := params["CHECKSUMHASH"]
	if !ok || checksum == "" {
		return ErrChecksumMismatch
	}
	if !VerifySignature(joinParams(params), c.cfg.MerchantKey, checksum) {
		return ErrChecksumMismatch
	}
	return nil
}

// GenerateSignature produces a Paytm checksum for a payload: SHA-256
// of payload plus a random salt, hex-encoded, with the salt appended,
// then AES-128-CBC encrypted under the merchant key and base64'd.
func GenerateSignature(payload, key string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return signWithSalt(payload, key, base64.StdEncoding.EncodeToString(salt)[:saltLength])
}

// VerifySignature decrypts a checksum and recomputes the digest with
// the salt it carries. Comparison is constant-time.
func VerifySignature(payload, key, checksum string) bool {
	plain, err := decrypt(checksum, key)
	if err != nil || len(plain) <= saltLength {
		return false
	}

	salt := plain[len(plain)-saltLength:]
	expected, err := signWithSalt(payload, key, salt)
	if err != nil {
		return false
	}

	recomputed, err := decrypt(expected, key)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(recomputed)) == 1
}

func signWithSalt(payload, key, salt string) (string, error) {
	digest := sha256.Sum256([]byte(payload + "|" + salt))
	plain := hex.EncodeToString(digest[:]) + salt
	return encrypt(plain, key)
}

func encrypt(plain, key string) (string, error) {
	block, err := aes.NewCipher(keyBytes(key))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plain), block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(checksumIV)[:block.BlockSize()]).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func decrypt(encoded, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode checksum: %w", err)
	}

	block, err := aes.NewCipher(keyBytes(key))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(raw) == 0 || len(raw)%block.BlockSize() != 0 {
		return "", errors.New("ciphertext is not block-aligned")
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, []byte(checksumIV)[:block.BlockSize()]).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, block.BlockSize())
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

// keyBytes fits the merchant key to AES-128.
func keyBytes(key string) []byte {
	b := make([]byte, 16)
	copy(b, key)
	return b
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, errors.New("bad padding")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errors.New("bad padding")
		}
	}
	return data[:len(data)-pad], nil
}

// joinParams serializes callback parameters the way the checksum was
// computed: values of all keys except CHECKSUMHASH, sorted by key,
// joined with pipes.
func joinParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "CHECKSUMHASH" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = params[k]
	}
	return strings.Join(values, "|")
}

// formatRupees renders paise as a rupee string with two decimals.
func formatRupees(paise int64) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}
