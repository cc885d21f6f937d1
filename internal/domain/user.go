package domain

// User is an operator account managed through the auth API.
type User struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// UserRequest creates an operator account.
type UserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}
