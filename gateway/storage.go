package gateway

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"inksnap-backend/apperrors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/heic"}

// DiskStorage keeps uploads under a local directory served at BaseURL.
type DiskStorage struct {
	root     string
	baseURL  string
	maxBytes int64
}

func NewDiskStorage(root, baseURL string, maxBytes int64) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "storage.NewDiskStorage.MkdirAll")
	}
	return &DiskStorage{
		root:     root,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}, nil
}

func (s *DiskStorage) Root() string { return s.root }

func (s *DiskStorage) Upload(ctx context.Context, in UploadInput) (*StoredObject, error) {
	if in.Body == nil {
		return nil, apperrors.Upload("no file provided", nil)
	}
	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.Upload("failed to read upload", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.Upload("file is too large", nil)
	}
	if len(data) == 0 {
		return nil, apperrors.Upload("file is empty", nil)
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return nil, apperrors.Upload("only images can be uploaded, got "+mtype.String(), nil)
	}

	folder := cleanSegment(in.Folder)
	if folder == "" {
		folder = "misc"
	}
	name := strings.TrimSuffix(cleanSegment(in.Name), filepath.Ext(in.Name))
	if name == "" {
		name = "image"
	}
	ref := path.Join(folder, uuid.NewString()+"-"+name+mtype.Extension())

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Upload("upload cancelled", err)
	}
	full := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, apperrors.Upload("failed to store file", errors.Wrap(err, "storage.Upload.MkdirAll"))
	}
	if err := writeFile(full, data); err != nil {
		return nil, apperrors.Upload("failed to store file", errors.Wrap(err, "storage.Upload.Write"))
	}

	return &StoredObject{URL: s.baseURL + "/" + ref, Ref: ref}, nil
}

func (s *DiskStorage) Delete(ctx context.Context, ref string) error {
	clean := path.Clean("/" + ref)[1:]
	if clean == "" || clean != ref {
		return apperrors.Validation("invalid file reference")
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return apperrors.Gateway("failed to delete file", errors.Wrap(err, "storage.Delete.Remove"))
	}
	return nil
}

func cleanSegment(s string) string {
	s = unsafeName.ReplaceAllString(filepath.Base(strings.TrimSpace(s)), "-")
	return strings.Trim(s, ".-")
}

func writeFile(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
