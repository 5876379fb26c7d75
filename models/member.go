package models

import "time"

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Member is a registered kariah member of a mosque. Admin actions on
// claims always resolve the acting member by ID and check Role here.
type Member struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	MosqueID  string    `json:"mosque_id" gorm:"not null;index"`
	FullName  string    `json:"full_name" gorm:"not null"`
	Email     string    `json:"email" gorm:"index"`
	ICNumber  string    `json:"ic_number"` // Malaysian NRIC
	Phone     string    `json:"phone"`
	Role      string    `json:"role" gorm:"default:'member'"`
	IsKariah  bool      `json:"is_kariah" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Mosque Mosque `json:"mosque,omitempty" gorm:"foreignKey:MosqueID"`
}

// IsAdmin reports whether the member may perform admin-only claim actions.
func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}
