package models

import "time"

// LegacyRecord is a historical payment row imported from a predecessor
// system, awaiting reconciliation to a live member account. IsMatched is
// true iff both MatchedUserID and ContributionID are set; the matcher
// maintains that invariant inside a transaction.
type LegacyRecord struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	MosqueID       string     `json:"mosque_id" gorm:"not null;index"`
	FullName       string     `json:"full_name" gorm:"not null"`
	Amount         float64    `json:"amount" gorm:"not null"`
	PaymentDate    time.Time  `json:"payment_date"`
	InvoiceNumber  string     `json:"invoice_number"`
	MatchedUserID  *string    `json:"matched_user_id,omitempty"`
	ContributionID *string    `json:"contribution_id,omitempty"`
	IsMatched      bool       `json:"is_matched" gorm:"default:false;index"`
	MatchedAt      *time.Time `json:"matched_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	MatchedUser  *Member       `json:"matched_user,omitempty" gorm:"foreignKey:MatchedUserID"`
	Contribution *Contribution `json:"contribution,omitempty" gorm:"foreignKey:ContributionID"`
}
