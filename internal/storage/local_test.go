package storage

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, now time.Time) *LocalStore {
	t.Helper()
	s := NewLocalStore(t.TempDir(), "https://shop.example.com/", "secret")
	s.now = func() time.Time { return now }
	return s
}

func signedParts(t *testing.T, link string) (string, url.Values) {
	t.Helper()
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	return strings.TrimPrefix(parsed.Path, "/files/"), parsed.Query()
}

func TestSignURLRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	link, err := s.SignURL("uploads/files/guide.pdf", "Guide.pdf", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://shop.example.com/files/uploads/files/guide.pdf?"))

	relPath, q := signedParts(t, link)
	full, err := s.Verify(relPath, q.Get("exp"), q.Get("name"), q.Get("sig"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(full, "guide.pdf"))
}

func TestVerifyRejectsTamperingAndExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	link, err := s.SignURL("uploads/files/guide.pdf", "Guide.pdf", time.Hour)
	require.NoError(t, err)
	relPath, q := signedParts(t, link)

	_, err = s.Verify("uploads/files/other.pdf", q.Get("exp"), q.Get("name"), q.Get("sig"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.Verify(relPath, q.Get("exp"), "Renamed.pdf", q.Get("sig"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	s.now = func() time.Time { return now.Add(time.Hour) }
	_, err = s.Verify(relPath, q.Get("exp"), q.Get("name"), q.Get("sig"))
	assert.ErrorIs(t, err, ErrLinkExpired)
}

func TestPathsOutsideUploadsAreRejected(t *testing.T) {
	s := newTestStore(t, time.Now())

	for _, p := range []string{"", "etc/passwd", "uploads/../../etc/passwd", "../uploads"} {
		_, err := s.SignURL(p, "", time.Hour)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
	assert.ErrorIs(t, s.Delete("config/.env"), ErrInvalidPath)
	assert.NoError(t, s.Delete(""))
}

func TestSaveProductFileAndDelete(t *testing.T) {
	s := newTestStore(t, time.Now())
	header := multipartFile(t, "file", "ebook.pdf", []byte("%PDF-1.4 content"))

	stored, err := s.SaveProductFile(header)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Path, "uploads/files/"))
	assert.True(t, strings.HasSuffix(stored.Path, ".pdf"))
	assert.Equal(t, "ebook.pdf", stored.Name)
	assert.EqualValues(t, 16, stored.Size)

	full, err := s.resolve(stored.Path)
	require.NoError(t, err)
	_, err = os.Stat(full)
	require.NoError(t, err)

	require.NoError(t, s.Delete(stored.Path))
	_, err = os.Stat(full)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Delete(stored.Path), "deleting twice is fine")
}

type failingCloser struct {
	*os.File
}

func (f failingCloser) Close() error {
	_ = f.File.Close()
	return errors.New("flush failed")
}

func TestSaveProductFileRemovesFileWhenCloseFails(t *testing.T) {
	s := newTestStore(t, time.Now())
	var created string
	s.create = func(name string) (io.WriteCloser, error) {
		created = name
		f, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return failingCloser{File: f}, nil
	}

	_, err := s.SaveProductFile(multipartFile(t, "file", "ebook.pdf", []byte("%PDF-1.4 content")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")

	require.NotEmpty(t, created)
	_, err = os.Stat(created)
	assert.True(t, os.IsNotExist(err), "partial file is removed")
}

func TestSaveImageRejectsUnknownExtension(t *testing.T) {
	s := newTestStore(t, time.Now())
	_, err := s.SaveImage(multipartFile(t, "image", "cover.gif", []byte("GIF89a")))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func multipartFile(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File[field][0]
}
