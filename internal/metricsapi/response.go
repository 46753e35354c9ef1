package metricsapi

import (
	"github.com/labstack/echo/v4"
)

// Response is the uniform API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(200, Response{Success: true, Data: data})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Response{Success: false, Message: message})
}
