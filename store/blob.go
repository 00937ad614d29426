package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
)

const blobUrlScheme = "blob://"

const (
	insertBlobSQL = "INSERT INTO blobs (id, name, mime_type, size, data, created_at) VALUES (?,?,?,?,?,?)"
	selectBlobSQL = "SELECT name, mime_type, size, data, created_at FROM blobs WHERE id = ?"
	lockBlobSQL   = "SELECT id FROM blobs WHERE id = ? FOR UPDATE"
	deleteBlobSQL = "DELETE FROM blobs WHERE id = ?"
)

// blobStore implements interface `IBlobStore` on the MySQL `blobs` table, so every client of
// the backend reads the same attachments. Urls have the form blob://{id}/{escaped name}.
type blobStore struct {
	*sql.DB
	maxBytes int
	now      func() time.Time
	newId    func() string
}

// NewBlobStore creates a blob store, maxBytes <= 0 means no limit.
func NewBlobStore(db *sql.DB, maxBytes int) *blobStore {
	return &blobStore{
		DB:       db,
		maxBytes: maxBytes,
		now:      time.Now,
		newId:    newId,
	}
}

func (s *blobStore) UploadBlob(ctx context.Context, data []byte, name, mimeType string) (string, error) {
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return "", fmt.Errorf("blob: %d bytes exceeds max limit: %d bytes", len(data), s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := s.newId()
	if data == nil {
		data = []byte{}
	}
	if _, err := s.ExecContext(ctx, insertBlobSQL, id, name, mimeType, len(data), data,
		s.now().UTC().Truncate(time.Millisecond)); err != nil {
		glog.Errorf("insert blob `%s` exec err: %v", name, err)
		return "", err
	}
	return blobUrlScheme + id + "/" + url.PathEscape(name), nil
}

func (s *blobStore) ReadBlob(ctx context.Context, blobUrl string) ([]byte, *BlobInfo, error) {
	id, err := parseBlobUrl(blobUrl)
	if err != nil {
		return nil, nil, err
	}

	var data []byte
	var info BlobInfo
	var created time.Time
	if err := s.QueryRowContext(ctx, selectBlobSQL, id).
		Scan(&info.Name, &info.MimeType, &info.Size, &data, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		glog.Errorf("read blob scan err: %v", err)
		return nil, nil, err
	}
	info.Created = created.Unix()
	return data, &info, nil
}

func (s *blobStore) DeleteBlob(ctx context.Context, blobUrl string) error {
	id, err := parseBlobUrl(blobUrl)
	if err != nil {
		return err
	}

	return withTx(ctx, s.DB, func(ctx context.Context, tx *sql.Tx) error {
		var found string
		if err := tx.QueryRowContext(ctx, lockBlobSQL, id).Scan(&found); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteBlobSQL, id); err != nil {
			glog.Errorf("delete blob exec err: %v", err)
			return err
		}
		return nil
	})
}

func parseBlobUrl(blobUrl string) (string, error) {
	if !strings.HasPrefix(blobUrl, blobUrlScheme) {
		return "", fmt.Errorf("blob: invalid url `%s`", blobUrl)
	}
	rest := strings.TrimPrefix(blobUrl, blobUrlScheme)
	id := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		id = rest[:i]
	}
	if id == "" {
		return "", fmt.Errorf("blob: invalid url `%s`", blobUrl)
	}
	return id, nil
}
