// Package errors provides classified errors shared by shipwatch services.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeConfigInvalid  Code = "CONFIG_INVALID"
	CodeProjectUnknown Code = "PROJECT_UNKNOWN"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeStateUnavailable Code = "STATE_UNAVAILABLE"

	// Delivery errors
	CodeDeliveryFailed Code = "DELIVERY_FAILED"

	// Webhook errors
	CodeSignatureInvalid Code = "SIGNATURE_INVALID"
	CodePayloadInvalid   Code = "PAYLOAD_INVALID"
	CodePayloadTooLarge  Code = "PAYLOAD_TOO_LARGE"
)

// HTTPStatus maps codes to response statuses for the webhook surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeConfigInvalid, CodePayloadInvalid:
		return http.StatusBadRequest
	case CodeSignatureInvalid:
		return http.StatusUnauthorized
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeNotFound, CodeProjectUnknown:
		return http.StatusNotFound
	case CodeDeliveryFailed:
		return http.StatusBadGateway
	case CodeStateUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps codes to gRPC status codes for the readiness API.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeConfigInvalid, CodePayloadInvalid, CodePayloadTooLarge:
		return codes.InvalidArgument
	case CodeSignatureInvalid:
		return codes.Unauthenticated
	case CodeNotFound, CodeProjectUnknown:
		return codes.NotFound
	case CodeDeliveryFailed, CodeStateUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
