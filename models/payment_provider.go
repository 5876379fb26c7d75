package models

import "time"

const (
	GatewayBillplz   = "billplz"
	GatewayToyyibPay = "toyyibpay"
)

// PaymentProvider holds a mosque's credentials for one payment gateway.
// The API secret (Billplz API key / ToyyibPay user secret key) is sealed
// with secretbox before it touches the database and is never serialized
// back out over the API.
type PaymentProvider struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	MosqueID        string    `json:"mosque_id" gorm:"not null;uniqueIndex:ux_payment_providers_mosque_gateway,priority:1"`
	GatewayType     string    `json:"gateway_type" gorm:"not null;uniqueIndex:ux_payment_providers_mosque_gateway,priority:2"`
	EncryptedSecret []byte    `json:"-" gorm:"not null"`
	// CollectionRef is the Billplz collection ID or ToyyibPay category code.
	CollectionRef string    `json:"collection_ref" gorm:"not null"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
