package models

import "time"

// KhairatProgram is a mutual-aid fund run by a mosque. Members contribute
// an annual fee and claim the benefit amount on a covered event.
type KhairatProgram struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	MosqueID      string    `json:"mosque_id" gorm:"not null;index"`
	Name          string    `json:"name" gorm:"not null"`
	Description   string    `json:"description"`
	AnnualFee     float64   `json:"annual_fee" gorm:"default:0"`
	BenefitAmount float64   `json:"benefit_amount" gorm:"default:0"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Mosque Mosque `json:"mosque,omitempty" gorm:"foreignKey:MosqueID"`
}
