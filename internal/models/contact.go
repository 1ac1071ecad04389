package models

// ContactMessage is a submitted support message. Write-once, admin-readable.
type ContactMessage struct {
	BaseModel
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	IsRead  bool   `gorm:"index" json:"is_read"`
}
