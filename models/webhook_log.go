package models

import "time"

// WebhookLog stores every inbound gateway callback (payload + outcome)
// for audit and debugging, whether or not it was accepted. Rows are
// exported to object storage by the nightly archive job.
type WebhookLog struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Provider    string    `json:"provider" gorm:"not null;index"`
	ExternalRef string    `json:"external_ref" gorm:"index"` // gateway bill/transaction id
	MosqueID    string    `json:"mosque_id" gorm:"index"`
	Payload     string    `json:"payload" gorm:"type:text"`
	SignatureOK bool      `json:"signature_ok" gorm:"default:false"`
	Outcome     string    `json:"outcome"` // e.g. "applied:completed", "noop", "rejected:bad_signature"
	Error       string    `json:"error,omitempty" gorm:"type:text"`
	Archived    bool      `json:"archived" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
