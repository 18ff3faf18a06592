package auth

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleCustomer:
		return true
	default:
		return false
	}
}

// Identity is the normalized claim payload carried by both token classes.
// SubjectID and Role are always present in a successfully verified token;
// Email may be empty in tokens minted before the claim shape carried it.
type Identity struct {
	SubjectID string `json:"id"`
	Role      Role   `json:"role"`
	Email     string `json:"email,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
