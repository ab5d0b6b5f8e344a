package domain

// User is a read-only directory entry. Registration and credential issuance
// live outside this service.
type User struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Status   string `json:"status,omitempty"`
}
