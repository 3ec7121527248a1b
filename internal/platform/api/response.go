// Package api holds the HTTP envelope every endpoint answers with, the echo
// error handler that renders failures into it, and the request validator.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smiledesk/dental/pkg/apperr"
)

// Envelope is the JSON shape of every response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    apperr.Kind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// OKMessage writes a 200 success envelope with a message.
func OKMessage(c echo.Context, data interface{}, msg string) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: msg})
}

// Created writes a 201 success envelope.
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Fail builds the error envelope for kind and message.
func Fail(kind apperr.Kind, msg string) Envelope {
	return Envelope{Success: false, Error: msg, Kind: kind}
}
