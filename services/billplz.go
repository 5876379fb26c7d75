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
	"sort"
	"strings"

	"masjid-khairat-system/models"
	"masjid-khairat-system/utils"

	"github.com/shopspring/decimal"
)

const defaultBillplzBaseURL = "https://www.billplz.com/api/v3"

// BillplzClient talks to the Billplz v3 API. The API key is per mosque
// and passed per call, not held on the client.
type BillplzClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewBillplzClient() *BillplzClient {
	return &BillplzClient{
		BaseURL:    defaultBillplzBaseURL,
		HTTPClient: utils.HTTPClient,
	}
}

type billplzBillResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	State string `json:"state"`
	Paid  bool   `json:"paid"`
}

// CreateBill creates a bill in the mosque's collection and returns its
// ID and payment URL. Billplz wants the amount in sen.
func (b *BillplzClient) CreateBill(ctx context.Context, creds GatewayCredentials, req BillRequest) (*GatewayBill, error) {
	amountSen := decimal.NewFromFloat(req.Amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	form := url.Values{}
	form.Set("collection_id", creds.CollectionRef)
	form.Set("email", req.Email)
	form.Set("name", req.Name)
	form.Set("amount", fmt.Sprintf("%d", amountSen))
	form.Set("description", req.Description)
	form.Set("reference_1", req.Reference)
	form.Set("callback_url", req.CallbackURL)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.BaseURL+"/bills", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(creds.Secret, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call billplz: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("billplz returned status %d: %s", resp.StatusCode, string(body))
	}

	var bill billplzBillResponse
	if err := json.NewDecoder(resp.Body).Decode(&bill); err != nil {
		return nil, fmt.Errorf("failed to decode billplz response: %w", err)
	}

	return &GatewayBill{Code: bill.ID, PaymentURL: bill.URL}, nil
}

// BillStatus fetches a bill and maps its state onto the internal
// contribution status enum.
func (b *BillplzClient) BillStatus(ctx context.Context, creds GatewayCredentials, billCode string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", b.BaseURL+"/bills/"+billCode, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(creds.Secret, "")

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call billplz: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("billplz returned status %d: %s", resp.StatusCode, string(body))
	}

	var bill billplzBillResponse
	if err := json.NewDecoder(resp.Body).Decode(&bill); err != nil {
		return "", fmt.Errorf("failed to decode billplz response: %w", err)
	}

	return MapBillplzState(bill.State, fmt.Sprintf("%t", bill.Paid)), nil
}

// MapBillplzState maps the gateway's paid/state pair onto the internal
// contribution status enum: paid → completed, overdue → failed,
// anything else still due → pending.
func MapBillplzState(state, paid string) string {
	if paid == "true" || state == "paid" {
		return models.ContributionStatusCompleted
	}
	if state == "overdue" {
		return models.ContributionStatusFailed
	}
	return models.ContributionStatusPending
}

// ComputeBillplzSignature builds the X-Signature value for a callback
// payload: every field except the signature itself rendered as key|value,
// sorted by key, joined with "|", HMAC-SHA256 with the API secret, hex.
func ComputeBillplzSignature(values url.Values, secret string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "x_signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+values.Get(k))
	}
	source := strings.Join(parts, "|")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(source))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBillplzSignature checks a callback signature in constant time.
func VerifyBillplzSignature(values url.Values, secret, signature string) bool {
	expected := ComputeBillplzSignature(values, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
