package apperrors

import "net/http"

type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeGateway         Code = "GATEWAY"
	CodeUpload          Code = "UPLOAD"
	CodeAuthorization   Code = "AUTHORIZATION"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps a code to the response status handlers use.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUpload, CodeGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
