package auth

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"securepassword123"`
}

// RefreshRequest is the request body for POST /auth/refresh and /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" example:"9f86d081884c7d659a2feaa0c55ad015..."`
}

// SetupRequest is the request body for POST /auth/setup.
type SetupRequest struct {
	Username string `json:"username" example:"admin"`
	Email    string `json:"email" example:"admin@example.net"`
	Password string `json:"password" example:"securepassword123"`
}

// CreateUserRequest is the request body for POST /users.
type CreateUserRequest struct {
	Username string `json:"username" example:"noc"`
	Email    string `json:"email" example:"noc@example.net"`
	Password string `json:"password" example:"securepassword123"`
	Role     string `json:"role" example:"operator"`
}

// UpdateUserRequest is the request body for PUT /users/{id}.
type UpdateUserRequest struct {
	Email    string `json:"email" example:"noc@example.net"`
	Role     string `json:"role" example:"operator"`
	Disabled bool   `json:"disabled" example:"false"`
}

// SetupStatusResponse reports whether the first admin still has to be created.
type SetupStatusResponse struct {
	SetupRequired bool   `json:"setup_required" example:"true"`
	Version       string `json:"version" example:"0.4.0"`
}
