package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidPath      = errors.New("invalid storage path")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrLinkExpired      = errors.New("link has expired")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrFileTooLarge     = errors.New("file too large")
)

const (
	MaxImageSize   = 5 << 20
	MaxProductSize = 512 << 20

	imagesDir = "uploads/images"
	filesDir  = "uploads/files"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// LocalStore keeps uploads under a root directory and hands out HMAC signed,
// expiring links to them.
type LocalStore struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
	create  func(name string) (io.WriteCloser, error)
}

type StoredFile struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
}

func NewLocalStore(root, baseURL, secret string) *LocalStore {
	return &LocalStore{
		root:    filepath.Clean(root),
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
		create:  createFile,
	}
}

// SaveImage stores a product cover image and returns its relative path.
func (s *LocalStore) SaveImage(file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := imageExtensions[extension]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, extension)
	}
	if file.Size > MaxImageSize {
		return "", fmt.Errorf("%w (max 5MB)", ErrFileTooLarge)
	}

	stored, err := s.save(file, imagesDir, extension)
	if err != nil {
		return "", err
	}
	return stored.Path, nil
}

// SaveProductFile stores a downloadable product file.
func (s *LocalStore) SaveProductFile(file *multipart.FileHeader) (StoredFile, error) {
	if file.Size > MaxProductSize {
		return StoredFile{}, fmt.Errorf("%w (max 512MB)", ErrFileTooLarge)
	}
	return s.save(file, filesDir, strings.ToLower(filepath.Ext(file.Filename)))
}

func (s *LocalStore) save(file *multipart.FileHeader, dir, extension string) (StoredFile, error) {
	filename := uuid.NewString() + extension
	relPath := path.Join(dir, filename)

	fullPath, err := s.resolve(relPath)
	if err != nil {
		return StoredFile{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		log.Printf("[STORAGE] [ERROR] failed to create directory for %s: %v", relPath, err)
		return StoredFile{}, err
	}

	in, err := file.Open()
	if err != nil {
		log.Printf("[STORAGE] [ERROR] failed to open upload %s: %v", file.Filename, err)
		return StoredFile{}, err
	}
	defer in.Close()

	out, err := s.create(fullPath)
	if err != nil {
		log.Printf("[STORAGE] [ERROR] failed to create file %s: %v", fullPath, err)
		return StoredFile{}, err
	}

	written, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		log.Printf("[STORAGE] [ERROR] failed to write file %s: %v", fullPath, err)
		_ = os.Remove(fullPath)
		return StoredFile{}, err
	}

	log.Printf("[STORAGE] [INFO] stored %s (%d bytes)", relPath, written)
	return StoredFile{
		Path:        relPath,
		Name:        filepath.Base(file.Filename),
		Size:        written,
		ContentType: file.Header.Get("Content-Type"),
	}, nil
}

func createFile(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// Delete removes an upload. Missing files are not an error.
func (s *LocalStore) Delete(relPath string) error {
	if strings.TrimSpace(relPath) == "" {
		return nil
	}

	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SignURL returns a link to /files that stays valid for ttl. name is the
// filename offered to the browser.
func (s *LocalStore) SignURL(relPath, name string, ttl time.Duration) (string, error) {
	cleanRel, err := cleanUploadPath(relPath)
	if err != nil {
		return "", err
	}

	exp := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	query := url.Values{}
	query.Set("exp", exp)
	if name != "" {
		query.Set("name", name)
	}
	query.Set("sig", s.sign(cleanRel, exp, name))

	return s.baseURL + "/files/" + cleanRel + "?" + query.Encode(), nil
}

// Verify checks a signed link and returns the absolute path it grants.
func (s *LocalStore) Verify(relPath, exp, name, sig string) (string, error) {
	cleanRel, err := cleanUploadPath(relPath)
	if err != nil {
		return "", err
	}

	expected := s.sign(cleanRel, exp, name)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", ErrInvalidSignature
	}

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if !s.now().Before(time.Unix(expUnix, 0)) {
		return "", ErrLinkExpired
	}

	return s.resolve(cleanRel)
}

func (s *LocalStore) sign(relPath, exp, name string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(relPath + "\n" + exp + "\n" + name))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *LocalStore) resolve(relPath string) (string, error) {
	cleanRel, err := cleanUploadPath(relPath)
	if err != nil {
		return "", err
	}

	target := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(cleanRel)))
	if target == s.root || !strings.HasPrefix(target, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: outside storage root: %s", ErrInvalidPath, relPath)
	}
	return target, nil
}

func cleanUploadPath(relPath string) (string, error) {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return "", ErrInvalidPath
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")
	if !strings.HasPrefix(cleanRel, "uploads/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, relPath)
	}
	return cleanRel, nil
}
