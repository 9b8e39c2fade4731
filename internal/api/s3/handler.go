// Package s3 implements the S3 REST request translator: one method per
// operation, mapping HTTP verbs onto the object store and emitting
// S3-shaped XML or streamed bodies.
package s3

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/piwi3910/nebulaio/internal/api/middleware"
	"github.com/piwi3910/nebulaio/internal/config"
	"github.com/piwi3910/nebulaio/internal/objectstore"
	"github.com/piwi3910/nebulaio/internal/storage/fsadapter"
	"github.com/piwi3910/nebulaio/pkg/s3errors"
	"github.com/piwi3910/nebulaio/pkg/s3types"
)

// Handler serves the S3 REST API against a single objectstore.Store.
type Handler struct {
	store *objectstore.Store
	cfg   *config.Config
}

// NewHandler creates an S3 API handler backed by store, configured per cfg
// for static-site and routing-rule behavior.
func NewHandler(store *objectstore.Store, cfg *config.Config) *Handler {
	return &Handler{store: store, cfg: cfg}
}

// RegisterRoutes registers the S3 API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListBuckets)

	r.Route("/{bucket}", func(r chi.Router) {
		r.Put("/", h.CreateBucket)
		r.Delete("/", h.DeleteBucket)
		r.Head("/", h.HeadBucket)
		r.Get("/", h.handleBucketGet)
		r.Post("/", h.handleBucketPost)

		// A chi {param} never spans a '/', so object keys come from the
		// catch-all and are exposed to the handlers as the "key" URL param.
		withKey := func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				chi.RouteContext(r.Context()).URLParams.Add("key", chi.URLParam(r, "*"))
				next(w, r)
			}
		}

		r.Put("/*", withKey(h.handleObjectPut))
		r.Get("/*", withKey(h.GetObject))
		r.Head("/*", withKey(h.HeadObject))
		r.Delete("/*", withKey(h.DeleteObject))
		r.Post("/*", withKey(h.PostObject))
	})
}

// ListBuckets implements GET /.
func (h *Handler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.store.GetBuckets(r.Context())
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	writeXML(w, http.StatusOK, objectstore.BuildBuckets(buckets))
}

// CreateBucket implements PUT /<bucket>.
func (h *Handler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")

	if !objectstore.ValidBucketName(bucketName) {
		h.writeError(w, s3errors.ErrInvalidBucketName.WithResource(bucketName))
		return
	}

	if err := h.store.PutBucket(r.Context(), bucketName); err != nil {
		if errors.Is(err, objectstore.ErrBucketExists) {
			h.writeError(w, s3errors.ErrBucketAlreadyExists.WithResource(bucketName))
			return
		}

		h.writeInternalError(w, r, err)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Location", "/"+bucketName)
	w.WriteHeader(http.StatusOK)
}

// DeleteBucket implements DELETE /<bucket>.
func (h *Handler) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")

	err := h.store.DeleteBucket(r.Context(), bucketName)

	switch {
	case err == nil:
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, objectstore.ErrBucketNotEmpty):
		h.writeError(w, s3errors.ErrBucketNotEmpty.WithResource(bucketName))
	default:
		h.writeInternalError(w, r, err)
	}
}

// HeadBucket implements HEAD /<bucket>: existence check with no body.
func (h *Handler) HeadBucket(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")

	if _, err := h.store.GetBucket(r.Context(), bucketName); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
}

// handleBucketGet dispatches GET /<bucket> between static-site index
// serving and object listing.
func (h *Handler) handleBucketGet(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")

	if _, err := h.store.GetBucket(r.Context(), bucketName); err != nil {
		h.writeError(w, s3errors.ErrNoSuchBucket.WithResource(bucketName))
		return
	}

	if h.cfg.IndexDocument != "" {
		h.serveIndexOrFallback(w, r, bucketName, "")
		return
	}

	h.listObjects(w, r, bucketName)
}

func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request, bucketName string) {
	query := r.URL.Query()

	opts := objectstore.ListOptions{
		Prefix:    query.Get("prefix"),
		Marker:    query.Get("marker"),
		Delimiter: query.Get("delimiter"),
		MaxKeys:   objectstore.DefaultMaxKeys,
	}

	if mk := query.Get("max-keys"); mk != "" {
		if n, err := strconv.Atoi(mk); err == nil && n > 0 {
			opts.MaxKeys = n
		}
	}

	result, err := h.store.GetObjects(r.Context(), bucketName, opts)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	writeXML(w, http.StatusOK, objectstore.BuildBucketQuery(bucketName, opts, result))
}

// handleBucketPost implements POST /<bucket>?delete.
func (h *Handler) handleBucketPost(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["delete"]; ok {
		h.batchDelete(w, r)
		return
	}

	h.writeError(w, s3errors.ErrInvalidArgument)
}

func (h *Handler) batchDelete(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	var req s3types.DeleteRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	keys := make([]string, 0, len(req.Object))
	for _, o := range req.Object {
		keys = append(keys, o.Key)
	}

	// Precondition phase: every key must exist before any delete happens.
	for _, key := range keys {
		exists, err := h.store.GetObjectExists(r.Context(), bucketName, key)
		if err != nil {
			h.writeInternalError(w, r, err)
			return
		}

		if !exists {
			h.writeError(w, s3errors.ErrNoSuchKey.WithResource(key))
			return
		}
	}

	// Delete phase: remove each key in order; the first failure is
	// authoritative and already-removed keys stay removed.
	for _, key := range keys {
		if err := h.store.DeleteObject(r.Context(), bucketName, key); err != nil {
			h.writeInternalError(w, r, err)
			return
		}
	}

	writeXML(w, http.StatusOK, objectstore.BuildObjectsDeleted(keys))
}

// handleObjectPut dispatches PUT /<bucket>/<key> between copy and upload
//.
func (h *Handler) handleObjectPut(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-amz-copy-source") != "" {
		h.CopyObject(w, r)
		return
	}

	h.PutObject(w, r)
}

// PutObject implements the upload branch of PUT /<bucket>/<key>.
func (h *Handler) PutObject(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "key")

	obj, err := h.store.PutObject(r.Context(), bucketName, key, r.Body, uploadHeadersFromRequest(r))
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ETag", quoteETag(obj.MD5))
	w.WriteHeader(http.StatusOK)
}

// PostObject implements POST /<bucket>/<key> (form-style upload).
func (h *Handler) PostObject(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "key")

	obj, err := h.store.PutObject(r.Context(), bucketName, key, r.Body, uploadHeadersFromRequest(r))
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ETag", quoteETag(obj.MD5))
	w.WriteHeader(http.StatusOK)
}

// CopyObject implements the copy branch of PUT /<bucket>/<key> via
// x-amz-copy-source.
func (h *Handler) CopyObject(w http.ResponseWriter, r *http.Request) {
	destBucket := chi.URLParam(r, "bucket")
	destKey := chi.URLParam(r, "key")

	srcBucket, srcKey, err := parseCopySource(r.Header.Get("x-amz-copy-source"))
	if err != nil {
		h.writeError(w, s3errors.ErrInvalidArgument.WithMessage(err.Error()))
		return
	}

	if _, err := h.store.GetBucket(r.Context(), srcBucket); err != nil {
		h.writeError(w, s3errors.ErrNoSuchBucket.WithResource(srcBucket))
		return
	}

	exists, err := h.store.GetObjectExists(r.Context(), srcBucket, srcKey)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	if !exists {
		h.writeError(w, s3errors.ErrNoSuchKey.WithResource(srcKey))
		return
	}

	replaceMetadata := strings.EqualFold(r.Header.Get("x-amz-metadata-directive"), "REPLACE")

	obj, err := h.store.CopyObject(r.Context(), objectstore.CopyInput{
		SrcBucket:       srcBucket,
		SrcKey:          srcKey,
		DestBucket:      destBucket,
		DestKey:         destKey,
		ReplaceMetadata: replaceMetadata,
		NewHeaders:      uploadHeadersFromRequest(r),
	})
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeXML(w, http.StatusOK, objectstore.BuildCopyObject(obj))
}

// GetObject implements GET /<bucket>/<key>, including the ?acl canned
// response, conditional headers, range reads, and static-site fallback
//.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	h.getOrHeadObject(w, r, true)
}

// HeadObject implements HEAD /<bucket>/<key>.
func (h *Handler) HeadObject(w http.ResponseWriter, r *http.Request) {
	h.getOrHeadObject(w, r, false)
}

func (h *Handler) getOrHeadObject(w http.ResponseWriter, r *http.Request, withBody bool) {
	bucketName := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "key")

	if _, ok := r.URL.Query()["acl"]; ok {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		writeXML(w, http.StatusOK, objectstore.BuildACL())

		return
	}

	rng, rangeRequested, rangeErr := parseRange(r.Header.Get("Range"))
	if rangeErr != nil {
		h.writeError(w, s3errors.ErrInvalidArgument.WithMessage(rangeErr.Error()))
		return
	}

	obj, body, err := h.store.GetObject(r.Context(), bucketName, key, rng)
	if err != nil {
		if !errors.Is(err, objectstore.ErrObjectNotFound) && !errors.Is(err, objectstore.ErrBucketNotFound) {
			h.writeInternalError(w, r, err)
			return
		}

		h.handleObjectMiss(w, r, bucketName, key)

		return
	}
	defer body.Close()

	if h.checkConditional(w, r, obj) {
		return
	}

	h.writeObjectResponse(w, obj, body, rng, rangeRequested, withBody)
}

// handleObjectMiss implements the static-site / routing-rule fallback chain
// for a missing object on GET. With no routing rule, index document or error
// document configured, it answers 404 NoSuchKey.
func (h *Handler) handleObjectMiss(w http.ResponseWriter, r *http.Request, bucketName, key string) {
	if rule := h.cfg.RoutingRule; rule != nil {
		h.redirect(w, r, rule.Redirect, key)
		return
	}

	if h.cfg.IndexDocument != "" {
		h.serveIndexOrFallback(w, r, bucketName, key+"/"+h.cfg.IndexDocument)
		return
	}

	if h.cfg.ErrorDocument != "" {
		h.serveErrorDocument(w, r, bucketName)
		return
	}

	h.writeError(w, s3errors.ErrNoSuchKey.WithResource(key))
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, redirect config.RoutingRedirect, key string) {
	host := redirect.HostName
	if host == "" {
		host = r.Host
	}

	protocol := redirect.Protocol
	if protocol == "" {
		protocol = "http"
	}

	code := redirect.HTTPRedirectCode
	if code == 0 {
		code = http.StatusMovedPermanently
	}

	location := fmt.Sprintf("%s://%s/%s%s", protocol, host, redirect.ReplaceKeyPrefixWith, key)

	w.Header().Set("Location", location)
	w.WriteHeader(code)
}

// serveIndexOrFallback attempts to serve indexKey (or bucket root's
// IndexDocument when indexKey is ""); on a miss it applies the
// error-document fallback (the static-site fallback chain).
func (h *Handler) serveIndexOrFallback(w http.ResponseWriter, r *http.Request, bucketName, indexKey string) {
	key := indexKey
	if key == "" {
		key = h.cfg.IndexDocument
	}

	obj, body, err := h.store.GetObject(r.Context(), bucketName, key, nil)
	if err != nil {
		h.serveErrorDocument(w, r, bucketName)
		return
	}
	defer body.Close()

	h.writeObjectResponse(w, obj, body, nil, false, true)
}

// serveErrorDocument implements the static-site fallback: serve
// ErrorDocument with 404, or a fixed HTML 404 body if that too is missing
//.
func (h *Handler) serveErrorDocument(w http.ResponseWriter, r *http.Request, bucketName string) {
	if h.cfg.ErrorDocument != "" {
		obj, body, err := h.store.GetObject(r.Context(), bucketName, h.cfg.ErrorDocument, nil)
		if err == nil {
			defer body.Close()

			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Content-Type", obj.ContentType)

			out, closeOut := compressingWriter(w, r)
			w.WriteHeader(http.StatusNotFound)
			io.Copy(out, body) //nolint:errcheck // best-effort stream to client
			closeOut()

			return
		}
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/html")

	out, closeOut := compressingWriter(w, r)
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(out, "<html><body><h1>404 - Resource Not Found</h1></body></html>") //nolint:errcheck
	closeOut()
}

// checkConditional evaluates If-None-Match then If-Modified-Since, in that
// order, writing a bare 304 and returning true if either precondition says
// the client's cached copy is current.
func (h *Handler) checkConditional(w http.ResponseWriter, r *http.Request, obj objectstore.Object) bool {
	etag := quoteETag(obj.MD5)

	if inm := r.Header.Get("If-None-Match"); inm != "" {
		if inm == "*" || inm == etag {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.WriteHeader(http.StatusNotModified)

			return true
		}
	}

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			// Preserved as >= (not <=) per observed source behavior, not RFC 7232.
			if !t.Before(obj.ModifiedDate.Truncate(time.Second)) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.WriteHeader(http.StatusNotModified)

				return true
			}
		}
	}

	return false
}

// writeObjectResponse implements the shared response builder used by both
// GetObject and HeadObject.
func (h *Handler) writeObjectResponse(
	w http.ResponseWriter,
	obj objectstore.Object,
	body io.ReadCloser,
	rng *fsadapter.ByteRange,
	rangeRequested, withBody bool,
) {
	headers := w.Header()
	headers.Set("Access-Control-Allow-Origin", "*")
	headers.Set("ETag", quoteETag(obj.MD5))
	headers.Set("Last-Modified", obj.ModifiedDate.UTC().Format(http.TimeFormat))
	headers.Set("Content-Type", obj.ContentType)

	if obj.ContentEncoding != "" {
		headers.Set("Content-Encoding", obj.ContentEncoding)
	}

	if obj.ContentDisposition != "" {
		headers.Set("Content-Disposition", obj.ContentDisposition)
	}

	for _, meta := range obj.CustomMetaData {
		headers.Set(meta.Name, meta.Value)
	}

	status := http.StatusOK

	if rangeRequested && rng != nil {
		end := rng.End
		if end < 0 || end >= obj.Size {
			end = obj.Size - 1
		}

		headers.Set("Accept-Ranges", "bytes")
		headers.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, end, obj.Size))
		headers.Set("Content-Length", strconv.FormatInt(end-rng.Start+1, 10))
		status = http.StatusPartialContent
	} else {
		headers.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}

	w.WriteHeader(status)

	if withBody {
		io.Copy(w, body) //nolint:errcheck // best-effort stream to client
	}
}

// DeleteObject implements DELETE /<bucket>/<key>.
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "key")

	exists, err := h.store.GetObjectExists(r.Context(), bucketName, key)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	if !exists {
		h.writeError(w, s3errors.ErrNoSuchKey.WithResource(key))
		return
	}

	if err := h.store.DeleteObject(r.Context(), bucketName, key); err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusNoContent)
}

// writeError writes an S3 XML error envelope via (C).
func (h *Handler) writeError(w http.ResponseWriter, err s3errors.S3Error) {
	s3errors.WriteS3Error(w, err)
}

// writeInternalError logs the underlying cause as a side channel (logging
// has no effect on the response) and always emits the generic
// InternalError envelope.
func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("s3 request failed")

	s3errors.WriteS3Error(w, s3errors.ErrInternalError)
}

func writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header)) //nolint:errcheck // best-effort write
	xml.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort write
}

func quoteETag(md5hex string) string {
	return `"` + md5hex + `"`
}

func uploadHeadersFromRequest(r *http.Request) objectstore.UploadHeaders {
	headers := objectstore.UploadHeaders{
		ContentType:        r.Header.Get("Content-Type"),
		ContentEncoding:    r.Header.Get("Content-Encoding"),
		ContentDisposition: r.Header.Get("Content-Disposition"),
	}

	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}

		if strings.HasPrefix(strings.ToLower(name), "x-amz-meta-") {
			headers.CustomMetaData = append(headers.CustomMetaData, objectstore.MetaHeader{
				Name: name, Value: values[0],
			})
		}
	}

	return headers
}

func parseCopySource(copySource string) (bucket, key string, err error) {
	copySource = strings.TrimPrefix(copySource, "/")

	parts := strings.SplitN(copySource, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid x-amz-copy-source")
	}

	return parts[0], parts[1], nil
}

// parseRange parses an HTTP Range header of the form "bytes=start-end".
// Returns rangeRequested=false (and a nil range) when the header is absent.
func parseRange(header string) (rng *fsadapter.ByteRange, rangeRequested bool, err error) {
	if header == "" {
		return nil, false, nil
	}

	const prefix = "bytes="

	if !strings.HasPrefix(header, prefix) {
		return nil, false, errors.New("unsupported range unit")
	}

	spec := strings.TrimPrefix(header, prefix)

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, false, errors.New("malformed range")
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("malformed range start: %w", err)
	}

	end := int64(-1)

	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("malformed range end: %w", err)
		}
	}

	return &fsadapter.ByteRange{Start: start, End: end}, true, nil
}
