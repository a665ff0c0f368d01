package serverutils

type BaseResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

func SuccessResponse(message string, data interface{}) BaseResponse {
	return BaseResponse{Success: true, Message: message, Data: data}
}

func ErrorResponse(message string, detail interface{}) BaseResponse {
	return BaseResponse{Success: false, Message: message, Error: detail}
}
