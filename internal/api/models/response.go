package models

import "time"

// BaseResponse is the envelope every endpoint returns.
type BaseResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// OK wraps successful response data.
func OK(data interface{}) BaseResponse {
	return BaseResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// OKMessage wraps a successful response with a human message.
func OKMessage(message string, data interface{}) BaseResponse {
	return BaseResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// Fail wraps an API error.
func Fail(err *APIError) BaseResponse {
	return BaseResponse{
		Success:   false,
		Error:     err,
		Timestamp: time.Now().Unix(),
	}
}

// HealthResponse reports component liveness.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Timestamp  int64             `json:"timestamp"`
}
