package auth

// Role del usuario autenticado.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RolePatient:
		return true
	}
	return false
}

// IsStaffLevel: staff o admin.
func (r Role) IsStaffLevel() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   Role

	// Solo para staff: dispositivo aprobado con el que se hizo login.
	DeviceID string
}
