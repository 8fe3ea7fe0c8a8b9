package domain

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthState is what the storefront knows about the current visitor.
// IsLoading is always false server-side; it is kept so clients that render a
// pending state can share one shape.
type AuthState struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user"`
	IsLoading       bool  `json:"isLoading"`
}

func Anonymous() AuthState {
	return AuthState{}
}

func SignedIn(user User) AuthState {
	return AuthState{IsAuthenticated: true, User: &user}
}
