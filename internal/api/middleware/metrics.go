package middleware

import (
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/piwi3910/nebulaio/internal/metrics"
)

// HTTP method and operation constants.
const (
	methodGET        = "GET"
	operationUnknown = "Unknown"
)

// MetricsMiddleware records request metrics.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		metrics.IncrementActiveConnections()
		defer metrics.DecrementActiveConnections()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		operation := extractS3Operation(r)

		metrics.RecordRequest(r.Method, operation, ww.Status(), duration)

		if ww.Status() >= http.StatusBadRequest {
			metrics.RecordError(operation, getErrorType(ww.Status()))
		}
	})
}

// extractS3Operation extracts the S3 operation name from the request.
func extractS3Operation(r *http.Request) string {
	method := r.Method
	path := r.URL.Path

	if path == "/" && method == methodGET {
		return "ListBuckets"
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")

	const (
		minBucketParts = 1
		minKeyParts    = 2
	)

	hasBucket := len(parts) >= minBucketParts && parts[0] != ""
	hasKey := len(parts) >= minKeyParts && parts[1] != ""

	if hasBucket && !hasKey {
		return extractBucketOperation(r)
	}

	if hasBucket && hasKey {
		return extractObjectOperation(r)
	}

	return operationUnknown
}

// extractBucketOperation extracts the bucket-level operation name.
func extractBucketOperation(r *http.Request) string {
	switch r.Method {
	case http.MethodPut:
		return "CreateBucket"
	case http.MethodDelete:
		return "DeleteBucket"
	case http.MethodHead:
		return "HeadBucket"
	case methodGET:
		if _, ok := r.URL.Query()["acl"]; ok {
			return "GetBucketAcl"
		}

		return "ListObjectsV2"
	case http.MethodPost:
		if _, ok := r.URL.Query()["delete"]; ok {
			return "DeleteObjects"
		}

		return operationUnknown
	default:
		return operationUnknown
	}
}

// extractObjectOperation extracts the object-level operation name.
func extractObjectOperation(r *http.Request) string {
	query := r.URL.Query()

	switch r.Method {
	case http.MethodPut:
		if r.Header.Get("X-Amz-Copy-Source") != "" {
			return "CopyObject"
		}

		return "PutObject"
	case methodGET:
		if _, ok := query["acl"]; ok {
			return "GetObjectAcl"
		}

		return "GetObject"
	case http.MethodDelete:
		return "DeleteObject"
	case http.MethodHead:
		return "HeadObject"
	case http.MethodPost:
		return "PostObject"
	default:
		return operationUnknown
	}
}

// getErrorType returns an error type string based on HTTP status code.
func getErrorType(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "BadRequest"
	case status == http.StatusNotFound:
		return "NotFound"
	case status == http.StatusConflict:
		return "Conflict"
	case status == http.StatusInternalServerError:
		return "InternalError"
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return "ClientError"
	case status >= http.StatusInternalServerError:
		return "ServerError"
	default:
		return operationUnknown
	}
}
