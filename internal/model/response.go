package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type UserList struct {
	Users []UserPublic `json:"users"`
	Total int          `json:"total"`
}

type RoleList struct {
	Roles []Role `json:"roles"`
	Total int    `json:"total"`
}
