// Package s3errors provides S3-compatible error types and response handling.
// These errors follow the AWS S3 API specification for error responses.
package s3errors

import (
	"encoding/xml"
	"fmt"
	"net/http"
)

// S3Error represents an S3 API error with code, message, status, and context.
type S3Error struct {
	Code       string
	Message    string
	Resource   string
	RequestID  string
	StatusCode int
}

// Error implements the error interface.
func (e S3Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (Resource: %s)", e.Code, e.Message, e.Resource)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithResource returns a copy of the error with the resource field set.
func (e S3Error) WithResource(resource string) S3Error {
	e.Resource = resource
	return e
}

// WithRequestID returns a copy of the error with the request ID field set.
func (e S3Error) WithRequestID(requestID string) S3Error {
	e.RequestID = requestID
	return e
}

// WithMessage returns a copy of the error with a custom message.
func (e S3Error) WithMessage(message string) S3Error {
	e.Message = message
	return e
}

// Is implements error matching for errors.Is().
func (e S3Error) Is(target error) bool {
	if t, ok := target.(S3Error); ok {
		return e.Code == t.Code
	}

	return false
}

// ErrorResponse represents the XML structure for S3 error responses.
type ErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestID string   `xml:"RequestId,omitempty"`
}

// WriteS3Error writes an S3 error response to the HTTP response writer.
func WriteS3Error(w http.ResponseWriter, err S3Error) {
	response := ErrorResponse{
		Code:      err.Code,
		Message:   err.Message,
		Resource:  err.Resource,
		RequestID: err.RequestID,
	}

	w.Header().Set("Content-Type", "application/xml")

	if err.RequestID != "" {
		w.Header().Set("x-amz-request-id", err.RequestID)
	}

	w.WriteHeader(err.StatusCode)
	w.Write([]byte(xml.Header))
	xml.NewEncoder(w).Encode(response)
}

// WriteS3ErrorWithContext writes an S3 error response with resource and request ID from context.
func WriteS3ErrorWithContext(w http.ResponseWriter, err S3Error, resource, requestID string) {
	WriteS3Error(w, err.WithResource(resource).WithRequestID(requestID))
}

// Standard S3 error definitions used by the request translator.
// Reference: https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html
var (
	// ErrInvalidBucketName is returned when the bucket name fails validation.
	ErrInvalidBucketName = S3Error{
		Code:       "InvalidBucketName",
		Message:    "The specified bucket is not valid",
		StatusCode: http.StatusBadRequest,
	}

	// ErrNoSuchBucket is returned when the specified bucket does not exist.
	ErrNoSuchBucket = S3Error{
		Code:       "NoSuchBucket",
		Message:    "The specified bucket does not exist",
		StatusCode: http.StatusNotFound,
	}

	// ErrBucketAlreadyExists is returned when the bucket name is already taken.
	ErrBucketAlreadyExists = S3Error{
		Code:       "BucketAlreadyExists",
		Message:    "The requested bucket name is not available. The bucket namespace is shared by all users of the system. Please select a different name and try again",
		StatusCode: http.StatusConflict,
	}

	// ErrBucketNotEmpty is returned when a bucket delete is attempted on a non-empty bucket.
	ErrBucketNotEmpty = S3Error{
		Code:       "BucketNotEmpty",
		Message:    "The bucket you tried to delete is not empty",
		StatusCode: http.StatusConflict,
	}

	// ErrNoSuchKey is returned when the specified object key does not exist.
	ErrNoSuchKey = S3Error{
		Code:       "NoSuchKey",
		Message:    "The specified key does not exist",
		StatusCode: http.StatusNotFound,
	}

	// ErrInternalError is returned when an internal error occurred.
	ErrInternalError = S3Error{
		Code:       "InternalError",
		Message:    "We encountered an internal error. Please try again",
		StatusCode: http.StatusInternalServerError,
	}

	// ErrInvalidArgument is returned when a request argument is malformed, e.g. copy-source.
	ErrInvalidArgument = S3Error{
		Code:       "InvalidArgument",
		Message:    "Invalid Argument",
		StatusCode: http.StatusBadRequest,
	}
)

// IsS3Error checks if an error is an S3Error with a specific code.
func IsS3Error(err error, code string) bool {
	if s3err, ok := err.(S3Error); ok { //nolint:errorlint // S3Error is never wrapped
		return s3err.Code == code
	}

	return false
}

// GetS3Error attempts to extract an S3Error from an error.
// If the error is not an S3Error, it returns ErrInternalError.
func GetS3Error(err error) S3Error {
	if s3err, ok := err.(S3Error); ok { //nolint:errorlint // S3Error is never wrapped
		return s3err
	}

	return ErrInternalError.WithMessage(err.Error())
}

// NewS3Error creates a custom S3Error with the specified parameters.
func NewS3Error(code, message string, statusCode int) S3Error {
	return S3Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}
