package uploads

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// Store writes uploaded images into a designated directory. Every upload
// gets a per-request unique key, so two clients sending the same filename
// can never race on one path.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the upload directory if absent. Failure here is the
// one fatal startup condition of the serving path.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating upload directory %s", dir)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save stores data under a fresh UUID key, keeping only a sanitized
// extension from the client-supplied filename. Returns the storage key.
func (s *Store) Save(originalName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}

	key := uuid.NewString() + ext
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing upload %s", key)
	}

	s.logger.Debug("Upload stored",
		zap.String("key", key),
		zap.String("original_name", originalName),
		zap.Int("bytes", len(data)))
	return key, nil
}

// Path resolves a storage key back to a filesystem path.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}
