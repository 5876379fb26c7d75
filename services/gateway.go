package services

import (
	"context"
	"errors"
	"fmt"

	"masjid-khairat-system/models"
	"masjid-khairat-system/utils"

	"gorm.io/gorm"
)

// GatewayCredentials is a mosque's decrypted credential set for one
// gateway (Billplz API key + collection ID, or ToyyibPay secret key +
// category code).
type GatewayCredentials struct {
	Secret        string
	CollectionRef string
}

// BillRequest is the normalized input for creating a bill on either
// gateway. Amount is in RM; clients convert to sen.
type BillRequest struct {
	Name        string
	Email       string
	Amount      float64
	Description string
	Reference   string // internal contribution ID, echoed back by the gateway
	CallbackURL string
}

// GatewayBill is the result of a bill creation.
type GatewayBill struct {
	Code       string // bill ID / bill code, stored as Contribution.PaymentReference
	PaymentURL string
}

// GatewayClient abstracts the outbound side of a payment gateway.
type GatewayClient interface {
	CreateBill(ctx context.Context, creds GatewayCredentials, req BillRequest) (*GatewayBill, error)
	// BillStatus returns the gateway's view of a bill mapped to a
	// contribution status (pending/completed/failed).
	BillStatus(ctx context.Context, creds GatewayCredentials, billCode string) (string, error)
}

// ErrNoProvider is returned when a mosque has no active credential set
// for the requested gateway.
var ErrNoProvider = errors.New("no active payment provider configured for this gateway")

// LoadGatewayCredentials fetches and decrypts a mosque's active
// credential set for a gateway.
func LoadGatewayCredentials(db *gorm.DB, mosqueID, gatewayType string) (*GatewayCredentials, error) {
	var provider models.PaymentProvider
	err := db.Where("mosque_id = ? AND gateway_type = ? AND is_active = ?", mosqueID, gatewayType, true).
		First(&provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoProvider
		}
		return nil, err
	}

	secret, err := utils.OpenSecret(provider.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s credentials for mosque %s: %w", gatewayType, mosqueID, err)
	}

	return &GatewayCredentials{Secret: secret, CollectionRef: provider.CollectionRef}, nil
}
