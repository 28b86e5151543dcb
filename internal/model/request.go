package model

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type VerifyOTPRequest struct {
	Nonce      string `json:"otp_nonce"`
	Code       string `json:"code"`
	RememberMe bool   `json:"remember_me"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateUserRequest struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	RoleID    int     `json:"role_id"`
	Email     *string `json:"email,omitempty"`
	NameFirst *string `json:"name_first,omitempty"`
	NameLast  *string `json:"name_last,omitempty"`
}

type InviteUserRequest struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	RoleID    int     `json:"role_id"`
	NameFirst *string `json:"name_first,omitempty"`
	NameLast  *string `json:"name_last,omitempty"`
}

// InviteUserResponse carries the generated one-time password back to the
// inviter, who is responsible for delivering it out of band.
type InviteUserResponse struct {
	User             UserPublic `json:"user"`
	GeneratedPassword string    `json:"generated_password"`
}

type UpdateUserRequest struct {
	RoleID    *int    `json:"role_id,omitempty"`
	Email     *string `json:"email,omitempty"`
	NameFirst *string `json:"name_first,omitempty"`
	NameLast  *string `json:"name_last,omitempty"`
}
