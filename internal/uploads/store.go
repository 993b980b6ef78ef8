package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	DefaultMaxBytes  = 5 << 20
	DefaultURLPrefix = "/uploads/"
)

var allowed = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// UploadError is returned when a file breaks the size or type limits.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string { return e.Message }

func IsUploadError(err error) bool {
	var upErr *UploadError
	return errors.As(err, &upErr)
}

// DiskStore writes images under Dir and hands out refs of the form
// URLPrefix + file name.
type DiskStore struct {
	Dir       string
	URLPrefix string
	MaxBytes  int64
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{Dir: dir, URLPrefix: DefaultURLPrefix, MaxBytes: maxBytes}, nil
}

// Save validates the uploaded image and stores it, returning its ref.
// Both the file extension and the sniffed content must be jpeg, png or gif.
func (s *DiskStore) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.MaxBytes {
		return "", &UploadError{Message: "image exceeds the " + humanize.IBytes(uint64(s.MaxBytes)) + " limit"}
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	want, ok := allowed[ext]
	if !ok {
		return "", &UploadError{Message: "only image files are allowed"}
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("detect upload type: %w", err)
	}
	if !mtype.Is(want) {
		return "", &UploadError{Message: "only image files are allowed"}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	name := "post-" + uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	// The header size comes from the client; count what is actually written.
	n, err := io.Copy(dst, io.LimitReader(src, s.MaxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.MaxBytes {
		err = &UploadError{Message: "image exceeds the " + humanize.IBytes(uint64(s.MaxBytes)) + " limit"}
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.Dir, name))
		if IsUploadError(err) {
			return "", err
		}
		return "", fmt.Errorf("write image file: %w", err)
	}

	return s.URLPrefix + name, nil
}

// Remove deletes the file behind ref. Unknown refs and missing files are ignored.
func (s *DiskStore) Remove(ref string) error {
	if !strings.HasPrefix(ref, s.URLPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(ref, s.URLPrefix))
	if name == "." || name == string(filepath.Separator) {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
