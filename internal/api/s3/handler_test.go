package s3

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/nebulaio/internal/config"
	"github.com/piwi3910/nebulaio/internal/objectstore"
	"github.com/piwi3910/nebulaio/internal/storage/fsadapter"
	"github.com/piwi3910/nebulaio/pkg/s3types"
)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, string) {
	t.Helper()

	dir := t.TempDir()

	if cfg == nil {
		cfg = &config.Config{Directory: dir}
	} else {
		cfg.Directory = dir
	}

	store := objectstore.New(fsadapter.NewOSFileSystem(), dir)
	handler := NewHandler(store, cfg)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, dir
}

func putObject(t *testing.T, srv *httptest.Server, bucket, key, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/"+bucket+"/"+key, bytes.NewBufferString(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func createBucket(t *testing.T, srv *httptest.Server, bucket string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/"+bucket+"/", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

// S1: create bucket, put object, get object round-trips bytes and headers.
func TestScenario_PutThenGetObject(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := createBucket(t, srv, "bucket1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = putObject(t, srv, "bucket1", "hello.txt", "Hello, World!")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	assert.NotEmpty(t, etag)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/bucket1/hello.txt")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, etag, resp.Header.Get("ETag"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(body))
}

// S2: GET on a missing key returns NoSuchKey.
func TestScenario_GetMissingKeyReturnsNoSuchKey(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := createBucket(t, srv, "bucket1")
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/bucket1/missing.txt")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "NoSuchKey")
}

// S3: conditional GET with If-None-Match returns 304.
func TestScenario_ConditionalGetIfNoneMatch(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "bucket1").Body.Close()
	putResp := putObject(t, srv, "bucket1", "a.txt", "data")
	etag := putResp.Header.Get("ETag")
	putResp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/bucket1/a.txt", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

// S4: byte-range GET returns 206 with Content-Range.
func TestScenario_RangeGet(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "bucket1").Body.Close()
	putObject(t, srv, "bucket1", "a.txt", "0123456789").Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/bucket1/a.txt", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=2-5")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 2-5/10", resp.Header.Get("Content-Range"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(body))
}

// S5: copy-object via x-amz-copy-source duplicates bytes and metadata.
func TestScenario_CopyObject(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "bucket1").Body.Close()
	putObject(t, srv, "bucket1", "src.txt", "source data").Body.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/bucket1/dst.txt", nil)
	require.NoError(t, err)
	req.Header.Set("X-Amz-Copy-Source", "/bucket1/src.txt")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result s3types.CopyObjectResult
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&result))
	assert.NotEmpty(t, result.ETag)

	getResp, err := http.Get(srv.URL + "/bucket1/dst.txt")
	require.NoError(t, err)
	defer getResp.Body.Close()

	body, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "source data", string(body))
}

// S6: batch delete via POST ?delete removes listed keys and reports them.
func TestScenario_BatchDelete(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "bucket1").Body.Close()
	putObject(t, srv, "bucket1", "a.txt", "a").Body.Close()
	putObject(t, srv, "bucket1", "b.txt", "b").Body.Close()

	reqBody := s3types.DeleteRequest{
		Object: []s3types.DeleteObjectEntry{{Key: "a.txt"}, {Key: "b.txt"}},
	}

	payload, err := xml.Marshal(reqBody)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/bucket1/?delete", "application/xml", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result s3types.DeleteResult
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&result))
	assert.Len(t, result.Deleted, 2)

	getResp, err := http.Get(srv.URL + "/bucket1/a.txt")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

// S6b: batch delete aborts entirely when any key is missing.
func TestScenario_BatchDeleteAbortsOnMissingKey(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "bucket1").Body.Close()
	putObject(t, srv, "bucket1", "a.txt", "a").Body.Close()

	reqBody := s3types.DeleteRequest{
		Object: []s3types.DeleteObjectEntry{{Key: "a.txt"}, {Key: "missing.txt"}},
	}

	payload, err := xml.Marshal(reqBody)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/bucket1/?delete", "application/xml", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var result s3types.ErrorResponse
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "NoSuchKey", result.Code)

	getResp, err := http.Get(srv.URL + "/bucket1/a.txt")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

// S7: static-site GET miss falls back to the index document, then the
// error document, then the fixed HTML body.
func TestScenario_StaticSiteFallbackChain(t *testing.T) {
	cfg := &config.Config{IndexDocument: "index.html", ErrorDocument: "error.html"}
	srv, _ := newTestServer(t, cfg)

	createBucket(t, srv, "site").Body.Close()
	putObject(t, srv, "site", "error.html", "<h1>custom error</h1>").Body.Close()

	resp, err := http.Get(srv.URL + "/site/missing-page")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>custom error</h1>", string(body))
}

// S8: a routing rule redirects a GET miss before the index-document retry.
func TestScenario_RoutingRuleRedirect(t *testing.T) {
	cfg := &config.Config{
		RoutingRule: &config.RoutingRule{
			Redirect: config.RoutingRedirect{
				HostName:             "example.com",
				Protocol:             "https",
				ReplaceKeyPrefixWith: "report-",
				HTTPRedirectCode:     http.StatusMovedPermanently,
			},
		},
	}

	srv, _ := newTestServer(t, cfg)
	createBucket(t, srv, "site").Body.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(srv.URL + "/site/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "https://example.com/report-missing", resp.Header.Get("Location"))
}

func TestCreateBucket_RejectsInvalidName(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := createBucket(t, srv, "AB")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBucket_ConflictWhenAlreadyExists(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "dup").Body.Close()

	resp := createBucket(t, srv, "dup")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteBucket_ConflictWhenNotEmpty(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "b1").Body.Close()
	putObject(t, srv, "b1", "x.txt", "x").Body.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/b1/", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListObjects_DelimiterProducesCommonPrefixes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "b1").Body.Close()
	putObject(t, srv, "b1", "a/1.txt", "1").Body.Close()
	putObject(t, srv, "b1", "a/2.txt", "2").Body.Close()
	putObject(t, srv, "b1", "b.txt", "b").Body.Close()

	resp, err := http.Get(srv.URL + "/b1/?delimiter=/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result s3types.ListBucketResult
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&result))

	require.Len(t, result.CommonPrefixes, 1)
	assert.Equal(t, "a/", result.CommonPrefixes[0].Prefix)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "b.txt", result.Contents[0].Key)
}

func TestHeadObject_NoBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "b1").Body.Close()
	putObject(t, srv, "b1", "a.txt", "payload").Body.Close()

	resp, err := http.Head(srv.URL + "/b1/a.txt")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestDeleteObject_NotFoundWhenMissing(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "b1").Body.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/b1/missing.txt", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPutObject_AtomicWriteLeavesNoPartialFile(t *testing.T) {
	srv, dir := newTestServer(t, nil)

	createBucket(t, srv, "b1").Body.Close()
	putObject(t, srv, "b1", "nested/key.txt", "content").Body.Close()

	entries, err := os.ReadDir(filepath.Join(dir, "b1", "nested"))
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestListBuckets_ReturnsCreatedBuckets(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "alpha").Body.Close()
	createBucket(t, srv, "beta").Body.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var result s3types.ListAllMyBucketsResult
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&result))

	names := make([]string, 0, len(result.Buckets.Bucket))
	for _, b := range result.Buckets.Bucket {
		names = append(names, b.Name)
	}

	assert.Contains(t, names, "alpha")
	assert.Contains(t, names, "beta")
}

func TestGetObject_ACLQueryReturnsCannedPolicy(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "b1").Body.Close()
	putObject(t, srv, "b1", "a.txt", "x").Body.Close()

	resp, err := http.Get(srv.URL + "/b1/a.txt?acl")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var policy s3types.AccessControlPolicy
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&policy))
	assert.NotEmpty(t, policy.Owner.ID)
}

func TestConditionalGet_IfModifiedSinceFuture(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	createBucket(t, srv, "b1").Body.Close()
	putObject(t, srv, "b1", "a.txt", "x").Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/b1/a.txt", nil)
	require.NoError(t, err)
	req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}
