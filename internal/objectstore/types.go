package objectstore

import "time"

// Bucket is a named container for objects.
type Bucket struct {
	Name         string
	CreationDate time.Time
}

// MetaHeader is a single preserved x-amz-meta-* header, kept in the order
// the upload provided it.
type MetaHeader struct {
	Name  string
	Value string
}

// Object describes a stored object's metadata. The body itself is read
// through the ByteStream returned alongside Object by Store.GetObject.
type Object struct {
	Key                string
	Size               int64
	MD5                string // lowercase hex, also the ETag value
	ModifiedDate       time.Time
	ContentType        string
	ContentEncoding    string
	ContentDisposition string
	CustomMetaData     []MetaHeader
}

// UploadHeaders carries the subset of request headers PutObject and
// CopyObject need to preserve on the stored object.
type UploadHeaders struct {
	ContentType        string
	ContentEncoding    string
	ContentDisposition string
	CustomMetaData     []MetaHeader
}

// ListOptions controls Store.GetObjects.
type ListOptions struct {
	Prefix    string
	Marker    string
	MaxKeys   int
	Delimiter string
}

// DefaultMaxKeys is applied when ListOptions.MaxKeys is zero.
const DefaultMaxKeys = 1000

// ListResult is the result of Store.GetObjects.
type ListResult struct {
	Objects        []Object
	CommonPrefixes []string
	IsTruncated    bool
}

// CopyInput describes a CopyObject request.
type CopyInput struct {
	SrcBucket       string
	SrcKey          string
	DestBucket      string
	DestKey         string
	ReplaceMetadata bool
	NewHeaders      UploadHeaders
}
