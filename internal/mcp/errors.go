// Package mcp implements the Model Context Protocol server exposing the
// manual search tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	sierrors "github.com/manual-sih/sihmcp/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotFound indicates no index has been built yet.
	ErrCodeIndexNotFound = -32001

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var sihErr *sierrors.SihError
	if errors.As(err, &sihErr) {
		return mapSihError(sihErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// mapSihError converts a SihError to an MCPError by category.
func mapSihError(se *sierrors.SihError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Category {
	case sierrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case sierrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case sierrors.CategoryStore:
		if se.Code == sierrors.ErrCodeCorruptIndex {
			return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
