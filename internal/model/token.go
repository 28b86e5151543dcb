package model

// AuthClaims is the verified content of an access token, carried through
// the request context by the auth middleware.
type AuthClaims struct {
	UserID  string `json:"sub"`
	TokenID string `json:"jti"`
	Kind    string `json:"kind"`
}

type TokenPair struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	User         UserPublic `json:"user"`
}

// LoginResult is the outcome of POST /auth/login: either a token pair, or
// an OTP nonce when the account has multi-factor authentication enabled.
type LoginResult struct {
	Tokens   *TokenPair `json:"tokens,omitempty"`
	OTPNonce string     `json:"otp_nonce,omitempty"`
	Message  string     `json:"message,omitempty"`
}
