package models

// User identifies the logged-in operator
type User struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is the operator's authenticated session: the user record plus the
// bearer token attached to every outbound API request.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"access_token"`
}

// Valid reports whether the session carries a usable token
func (s Session) Valid() bool {
	return s.Token != ""
}
