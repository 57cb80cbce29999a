package dto

// LoginRequest 口令登录请求
type LoginRequest struct {
	Passcode string `json:"passcode"`
}

// LoginResponse 口令登录响应
type LoginResponse struct {
	Success bool `json:"success"`
}
