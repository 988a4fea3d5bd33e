package domain

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the authenticated session identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Token string `json:"token,omitempty"`
}

var demoUsers = map[string]User{
	RoleAdmin: {ID: "admin-1", Email: "admin@example.com", Name: "Admin User", Role: RoleAdmin},
	RoleUser:  {ID: "user-1", Email: "user@example.com", Name: "Regular User", Role: RoleUser},
}

// DemoUser returns the fixture account for role.
func DemoUser(role string) (User, bool) {
	u, ok := demoUsers[role]
	return u, ok
}
