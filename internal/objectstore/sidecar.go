package objectstore

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/piwi3910/nebulaio/internal/storage/fsadapter"
)

// sidecarSuffix names the JSON metadata file that co-locates with each
// object body.
const sidecarSuffix = ".metadata.json"

// sidecar is the on-disk JSON document stored alongside an object body. It
// carries everything the body itself cannot: the original key (bodies are
// addressed by path, which loses nothing here, but the key is kept for
// clarity when inspecting the file), content type, custom headers, and the
// computed digest.
type sidecar struct {
	Key                string       `json:"key"`
	Size               int64        `json:"size"`
	MD5                string       `json:"md5"`
	ModifiedDate       time.Time    `json:"modifiedDate"`
	ContentType        string       `json:"contentType"`
	ContentEncoding    string       `json:"contentEncoding,omitempty"`
	ContentDisposition string       `json:"contentDisposition,omitempty"`
	CustomMetaData     []MetaHeader `json:"customMetaData,omitempty"`
}

func (s sidecar) toObject() Object {
	return Object{
		Key:                s.Key,
		Size:               s.Size,
		MD5:                s.MD5,
		ModifiedDate:       s.ModifiedDate,
		ContentType:        s.ContentType,
		ContentEncoding:    s.ContentEncoding,
		ContentDisposition: s.ContentDisposition,
		CustomMetaData:     s.CustomMetaData,
	}
}

func readSidecar(fs fsadapter.FS, path string) (sidecar, error) {
	r, err := fs.OpenRead(path, nil)
	if err != nil {
		if err == fsadapter.ErrNotExist {
			return sidecar{}, ErrObjectNotFound
		}

		return sidecar{}, fmt.Errorf("open metadata %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return sidecar{}, fmt.Errorf("read metadata %s: %w", path, err)
	}

	var s sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return sidecar{}, fmt.Errorf("decode metadata %s: %w", path, err)
	}

	return s, nil
}

// writeSidecar writes the metadata sidecar atomically. Called only after the
// body write has succeeded, so a partial upload never yields a visible
// sidecar.
func writeSidecar(fs fsadapter.FS, path string, s sidecar) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if _, err := fs.WriteAtomic(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write metadata %s: %w", path, err)
	}

	return nil
}

// md5Hex renders a WriteResult's digest the way ETags and sidecars want it.
func md5Hex(sum [16]byte) string {
	return hex.EncodeToString(sum[:])
}
