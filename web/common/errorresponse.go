package common

import "wristband.events/wristband/core/fault"

type ErrorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Message: message,
	}
}

// NewFaultResponse carries the typed reason alongside the message so the UI
// can render distinct copy for timeouts, duplicates and so on without
// parsing message text.
func NewFaultResponse(err error) *ErrorResponse {
	return &ErrorResponse{
		Message: err.Error(),
		Reason:  string(fault.ReasonOf(err)),
	}
}
