package helpers

import (
	"errors"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// Service codes and fragments ARM returns when a call is rejected by RBAC or
// policy. Matching is by substring because the SDK surfaces some of these
// only inside the raw error text.
var denialFragments = []string{
	"AuthorizationFailed",
	"LinkedAuthorizationFailed",
	"RequestDisallowedByPolicy",
	"Forbidden",
	"does not have authorization to perform action",
}

// IsDeniedError reports whether err represents an RBAC or policy denial.
func IsDeniedError(err error) bool {
	if err == nil {
		return false
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == 403 {
			return true
		}
		for _, fragment := range denialFragments {
			if strings.Contains(respErr.ErrorCode, fragment) {
				return true
			}
		}
	}

	msg := err.Error()
	for _, fragment := range denialFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// IsNotFoundError reports whether err is a 404 / ResourceNotFound class error.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "ResourceNotFound") ||
		strings.Contains(msg, "ResourceGroupNotFound") ||
		strings.Contains(msg, "NotFound")
}

// IsConflictError reports whether err is a 409 / conflict class error, which
// usually means another operation is still in flight on the resource.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 409 {
		return true
	}

	return strings.Contains(err.Error(), "Conflict")
}
