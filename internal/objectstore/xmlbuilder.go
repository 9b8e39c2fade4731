package objectstore

import (
	"time"

	"github.com/piwi3910/nebulaio/pkg/s3errors"
	"github.com/piwi3910/nebulaio/pkg/s3types"
)

// defaultOwner is the fixed owner identity this single-node server reports;
// there is no IAM principal to resolve it from (authentication is out
// of scope).
const defaultOwner = "nebulaio"

// BuildBuckets renders the GET / response.
func BuildBuckets(buckets []Bucket) s3types.ListAllMyBucketsResult {
	result := s3types.ListAllMyBucketsResult{
		Owner: s3types.Owner{ID: defaultOwner, DisplayName: defaultOwner},
	}

	for _, b := range buckets {
		result.Buckets.Bucket = append(result.Buckets.Bucket, s3types.BucketInfo{
			Name:         b.Name,
			CreationDate: b.CreationDate.UTC().Format(time.RFC3339),
		})
	}

	return result
}

// BuildBucketQuery renders the GET /<bucket> listing response.
func BuildBucketQuery(bucketName string, opts ListOptions, result ListResult) s3types.ListBucketResult {
	response := s3types.ListBucketResult{
		Name:        bucketName,
		Prefix:      opts.Prefix,
		Marker:      opts.Marker,
		Delimiter:   opts.Delimiter,
		MaxKeys:     opts.MaxKeys,
		IsTruncated: result.IsTruncated,
		Contents:    make([]s3types.ObjectInfo, 0, len(result.Objects)),
	}

	if response.MaxKeys == 0 {
		response.MaxKeys = DefaultMaxKeys
	}

	for _, obj := range result.Objects {
		response.Contents = append(response.Contents, s3types.ObjectInfo{
			Key:          obj.Key,
			LastModified: obj.ModifiedDate.UTC().Format(time.RFC3339),
			ETag:         `"` + obj.MD5 + `"`,
			Size:         obj.Size,
			StorageClass: "STANDARD",
		})
	}

	for _, p := range result.CommonPrefixes {
		response.CommonPrefixes = append(response.CommonPrefixes, s3types.CommonPrefix{Prefix: p})
	}

	return response
}

// BuildKeyNotFound renders the NoSuchKey error body.
func BuildKeyNotFound(key string) s3types.ErrorResponse {
	return buildErrorResponse(s3errors.ErrNoSuchKey.WithResource(key))
}

// BuildBucketNotFound renders the NoSuchBucket error body.
func BuildBucketNotFound(name string) s3types.ErrorResponse {
	return buildErrorResponse(s3errors.ErrNoSuchBucket.WithResource(name))
}

// BuildBucketNotEmpty renders the BucketNotEmpty error body.
func BuildBucketNotEmpty(name string) s3types.ErrorResponse {
	return buildErrorResponse(s3errors.ErrBucketNotEmpty.WithResource(name))
}

// BuildError renders a generic error body for an arbitrary code/message.
func BuildError(code, message string) s3types.ErrorResponse {
	return buildErrorResponse(s3errors.NewS3Error(code, message, 0))
}

func buildErrorResponse(err s3errors.S3Error) s3types.ErrorResponse {
	return s3types.ErrorResponse{
		Code:     err.Code,
		Message:  err.Message,
		Resource: err.Resource,
	}
}

// BuildACL renders the canned access control policy returned for every
// ?acl request; ACL evaluation itself is out of scope.
func BuildACL() s3types.AccessControlPolicy {
	owner := s3types.Owner{ID: defaultOwner, DisplayName: defaultOwner}

	return s3types.AccessControlPolicy{
		Owner: owner,
		AccessControlList: s3types.AccessControlList{
			Grant: []s3types.Grant{
				{Grantee: owner, Permission: "FULL_CONTROL"},
			},
		},
	}
}

// BuildCopyObject renders the CopyObjectResult body.
func BuildCopyObject(obj Object) s3types.CopyObjectResult {
	return s3types.CopyObjectResult{
		ETag:         `"` + obj.MD5 + `"`,
		LastModified: obj.ModifiedDate.UTC().Format(time.RFC3339),
	}
}

// BuildObjectsDeleted renders the batch-delete success body.
func BuildObjectsDeleted(keys []string) s3types.DeleteResult {
	result := s3types.DeleteResult{Deleted: make([]s3types.DeleteObjectEntry, 0, len(keys))}
	for _, k := range keys {
		result.Deleted = append(result.Deleted, s3types.DeleteObjectEntry{Key: k})
	}

	return result
}
