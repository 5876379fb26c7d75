package models

import "time"

const (
	ContributionStatusPending   = "pending"
	ContributionStatusCompleted = "completed"
	ContributionStatusFailed    = "failed"
)

const (
	PaymentMethodBillplz   = "billplz"
	PaymentMethodToyyibPay = "toyyibpay"
	PaymentMethodLegacy    = "legacy"
	PaymentMethodCash      = "cash"
)

// Contribution is a monetary payment into a khairat program, either made
// by a member through a payment gateway, recorded as cash, or synthesized
// by the legacy-record matcher. PaymentReference holds the gateway bill
// code (or legacy invoice number) and is the idempotency key for webhook
// reconciliation.
type Contribution struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	MosqueID         string     `json:"mosque_id" gorm:"not null;index"`
	ProgramID        string     `json:"program_id" gorm:"not null;index"`
	ContributorID    *string    `json:"contributor_id,omitempty" gorm:"index"` // nil for anonymous/legacy-sourced
	PayerName        string     `json:"payer_name"`
	PayerEmail       string     `json:"payer_email,omitempty"`
	Amount           float64    `json:"amount" gorm:"not null"`
	PaymentMethod    string     `json:"payment_method" gorm:"not null;index"`
	PaymentReference *string    `json:"payment_reference,omitempty" gorm:"uniqueIndex"`
	Status           string     `json:"status" gorm:"default:'pending';index"`
	ContributedAt    *time.Time `json:"contributed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Program     KhairatProgram `json:"program,omitempty" gorm:"foreignKey:ProgramID"`
	Contributor *Member        `json:"contributor,omitempty" gorm:"foreignKey:ContributorID"`
}
