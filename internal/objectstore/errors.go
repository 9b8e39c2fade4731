package objectstore

import "errors"

// Sentinel errors returned by Store methods. The request translator maps
// these onto S3 XML error envelopes using errors.Is, rather than matching
// substrings of err.Error().
var (
	ErrBucketNotFound = errors.New("objectstore: bucket not found")
	ErrBucketExists   = errors.New("objectstore: bucket already exists")
	ErrBucketNotEmpty = errors.New("objectstore: bucket not empty")
	ErrObjectNotFound = errors.New("objectstore: object not found")
)
