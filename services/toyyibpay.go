package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"masjid-khairat-system/models"
	"masjid-khairat-system/utils"

	"github.com/shopspring/decimal"
)

const defaultToyyibPayBaseURL = "https://toyyibpay.com"

// ToyyibPay bill payment status codes delivered in callbacks and returned
// by getBillTransactions.
const (
	toyyibStatusSuccess = "1"
	toyyibStatusPending = "2"
	toyyibStatusFailed  = "3"
)

// ToyyibPayClient talks to the ToyyibPay index.php/api endpoints.
type ToyyibPayClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewToyyibPayClient() *ToyyibPayClient {
	return &ToyyibPayClient{
		BaseURL:    defaultToyyibPayBaseURL,
		HTTPClient: utils.HTTPClient,
	}
}

// CreateBill creates a bill under the mosque's category. ToyyibPay wants
// the amount in sen and returns a one-element array with the BillCode.
func (t *ToyyibPayClient) CreateBill(ctx context.Context, creds GatewayCredentials, req BillRequest) (*GatewayBill, error) {
	amountSen := decimal.NewFromFloat(req.Amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	form := url.Values{}
	form.Set("userSecretKey", creds.Secret)
	form.Set("categoryCode", creds.CollectionRef)
	form.Set("billName", req.Description)
	form.Set("billDescription", req.Description)
	form.Set("billPriceSetting", "1")
	form.Set("billPayorInfo", "1")
	form.Set("billAmount", fmt.Sprintf("%d", amountSen))
	form.Set("billTo", req.Name)
	form.Set("billEmail", req.Email)
	form.Set("billExternalReferenceNo", req.Reference)
	form.Set("billCallbackUrl", req.CallbackURL)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.BaseURL+"/index.php/api/createBill", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call toyyibpay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("toyyibpay returned status %d: %s", resp.StatusCode, string(body))
	}

	var bills []struct {
		BillCode string `json:"BillCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bills); err != nil {
		return nil, fmt.Errorf("failed to decode toyyibpay response: %w", err)
	}
	if len(bills) == 0 || bills[0].BillCode == "" {
		return nil, fmt.Errorf("toyyibpay returned no bill code")
	}

	return &GatewayBill{
		Code:       bills[0].BillCode,
		PaymentURL: fmt.Sprintf("%s/%s", t.BaseURL, bills[0].BillCode),
	}, nil
}

// BillStatus asks getBillTransactions for the latest payment status of a
// bill and maps it onto the internal contribution status enum.
func (t *ToyyibPayClient) BillStatus(ctx context.Context, creds GatewayCredentials, billCode string) (string, error) {
	form := url.Values{}
	form.Set("billCode", billCode)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.BaseURL+"/index.php/api/getBillTransactions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call toyyibpay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("toyyibpay returned status %d: %s", resp.StatusCode, string(body))
	}

	var txns []struct {
		BillPaymentStatus string `json:"billpaymentStatus"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&txns); err != nil {
		return "", fmt.Errorf("failed to decode toyyibpay response: %w", err)
	}
	if len(txns) == 0 {
		return models.ContributionStatusPending, nil
	}

	return MapToyyibPayStatus(txns[0].BillPaymentStatus), nil
}

// MapToyyibPayStatus maps ToyyibPay's numeric status onto the internal
// contribution status enum.
func MapToyyibPayStatus(status string) string {
	switch status {
	case toyyibStatusSuccess:
		return models.ContributionStatusCompleted
	case toyyibStatusFailed:
		return models.ContributionStatusFailed
	default:
		return models.ContributionStatusPending
	}
}

// ComputeToyyibPaySignature builds the callback authenticity hash:
// HMAC-SHA256 over refno|billcode|status|amount with the category secret.
func ComputeToyyibPaySignature(refNo, billCode, status, amount, secret string) string {
	source := strings.Join([]string{refNo, billCode, status, amount}, "|")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(source))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyToyyibPaySignature checks a callback hash in constant time.
func VerifyToyyibPaySignature(refNo, billCode, status, amount, secret, signature string) bool {
	expected := ComputeToyyibPaySignature(refNo, billCode, status, amount, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
