package errors

// CodeSuccess is returned in the response envelope on success.
const (
	CodeSuccess = 200
)

// Envelope error codes, aligned with HTTP status semantics.
const (
	CodeInvalidParam  = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 409
	CodeUnprocessable = 422
	CodeServerError   = 500
)
