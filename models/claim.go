package models

import "time"

const (
	ClaimStatusPending     = "pending"
	ClaimStatusUnderReview = "under_review"
	ClaimStatusApproved    = "approved"
	ClaimStatusRejected    = "rejected"
	ClaimStatusPaid        = "paid"
	ClaimStatusCancelled   = "cancelled"
)

// Claim is a request for a khairat payout against a member's program
// membership. Status only moves along the transition table in services;
// paid and cancelled are terminal.
type Claim struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	MosqueID        string     `json:"mosque_id" gorm:"not null;index"`
	ClaimantID      string     `json:"claimant_id" gorm:"not null;index"`
	ProgramID       string     `json:"program_id" gorm:"not null;index"`
	RequestedAmount float64    `json:"requested_amount" gorm:"not null"`
	ApprovedAmount  *float64   `json:"approved_amount,omitempty"` // nil until approved; never exceeds RequestedAmount
	Status          string     `json:"status" gorm:"default:'pending';index"`
	ReviewedBy      *string    `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ApprovedBy      *string    `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Notes           string     `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Claimant Member         `json:"claimant,omitempty" gorm:"foreignKey:ClaimantID"`
	Program  KhairatProgram `json:"program,omitempty" gorm:"foreignKey:ProgramID"`
	Approver *Member        `json:"approver,omitempty" gorm:"foreignKey:ApprovedBy"`
	Reviewer *Member        `json:"reviewer,omitempty" gorm:"foreignKey:ReviewedBy"`
}
