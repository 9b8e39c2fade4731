package objectstore

import "regexp"

const (
	minBucketNameLength = 3
	maxBucketNameLength = 63
)

// bucketNamePattern is looser than AWS's documented bucket-naming rule: a
// `.` or `-` separator may be followed by more hyphens (so `a--b` and `a.-b`
// pass), while two dots in a row are still rejected. Preserved deliberately
// rather than tightened.
var bucketNamePattern = regexp.MustCompile(`^[a-z0-9]+([.-][-a-z0-9]+)*$`)

// ValidBucketName reports whether name satisfies the bucket-name invariant:
// the regex above and a length of 3 to 63 bytes.
func ValidBucketName(name string) bool {
	if len(name) < minBucketNameLength || len(name) > maxBucketNameLength {
		return false
	}

	return bucketNamePattern.MatchString(name)
}
