package handler

import "github.com/labstack/echo/v4"

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func jsonError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, NewErrorResponse(code, message))
}
