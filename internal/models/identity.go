package models

// Identity is the authenticated principal behind a request or a live
// connection, extracted from its bearer token.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

func (i Identity) IsAdmin() bool {
	return i.Role == "admin"
}
