package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/facette/natsort"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrOversizeRequest = errors.New("requested width exceeds maximum")

const (
	sourceSubDir   = "src"
	animatedSubDir = "animated"
)

// Store defines the interface for saving, retrieving, and deleting image assets.
// All paths handled by a Store are slash separated and relative to its root.
type Store interface {
	// Save writes data to relativePath, replacing any existing file atomically
	Save(relativePath string, data io.Reader) (string, error)
	// Get retrieves a reader for an asset
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// ReadFile returns the full content of an asset
	ReadFile(relativePath string) ([]byte, error)
	// Delete removes an asset
	Delete(relativePath string) error
	// GetFullPath returns the absolute filesystem path for a relative asset path
	GetFullPath(relativePath string) (string, error)

	// DerivativePath returns the cache location of a rendered crop
	DerivativePath(id uint, ratio Ratio, width int, ext string) (string, error)
	// AssetPath returns the location of a per-image asset (source, optimized master, animated artifacts)
	AssetPath(id uint, assetType AssetType, filename string) string
	// ClearCrops removes cached derivatives for the given ratio tokens, or all of them when none are given
	ClearCrops(id uint, tokens ...string) error
	// Renditions lists cached derivatives as "{ratio}/{width}.{ext}"
	Renditions(id uint) ([]string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath string // absolute path to IMAGE_ROOT
	maxWidth int
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, maxWidth int) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}
	if maxWidth <= 0 {
		return nil, fmt.Errorf("invalid max width %d", maxWidth)
	}

	log.Info().Str("path", absBasePath).Int("max_width", maxWidth).Msg("media.store: initialized local storage")
	return &LocalStorage{
		basePath: absBasePath,
		maxWidth: maxWidth,
	}, nil
}

func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

// DerivativePath builds "{shard}/{ratio}/{width}.{ext}". Widths above the
// configured maximum are rejected, never clamped.
func (ls *LocalStorage) DerivativePath(id uint, ratio Ratio, width int, ext string) (string, error) {
	if width > ls.maxWidth {
		return "", fmt.Errorf("%w: %d > %d", ErrOversizeRequest, width, ls.maxWidth)
	}
	if width < 1 {
		return "", fmt.Errorf("invalid width %d", width)
	}
	if ratio.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidRatio)
	}
	return path.Join(ShardPath(id), ratio.Token, strconv.Itoa(width)+"."+ext), nil
}

func (ls *LocalStorage) AssetPath(id uint, assetType AssetType, filename string) string {
	filename = sanitizeFilename(filename)
	switch assetType {
	case AssetTypeSource:
		return path.Join(ShardPath(id), sourceSubDir, filename)
	case AssetTypeAnimated:
		return path.Join(ShardPath(id), animatedSubDir, filename)
	default:
		return path.Join(ShardPath(id), filename)
	}
}

// sanitizeFilename keeps only the last element of a user supplied name
func sanitizeFilename(name string) string {
	name = filepath.Base(filepath.FromSlash(strings.TrimSpace(name)))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "source"
	}
	return name
}

// Save writes data to a temp file next to the target and renames it into
// place, so readers never observe a partial file and concurrent writers of the
// same path simply replace each other.
func (ls *LocalStorage) Save(relativePath string, data io.Reader) (string, error) {
	fullSavePath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return "", err
	}

	targetDir := filepath.Dir(fullSavePath)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory '%s': %w", targetDir, err)
	}

	tmpPath := filepath.Join(targetDir, "."+uuid.NewString()+".tmp")
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file '%s': %w", tmpPath, err)
	}

	if _, err = io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close '%s': %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, fullSavePath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move '%s' into place: %w", fullSavePath, err)
	}

	relPath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	log.Debug().Str("path", fullSavePath).Msg("media.store: saved asset")
	return filepath.ToSlash(relPath), nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("asset not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}

	return file, info, nil
}

func (ls *LocalStorage) ReadFile(relativePath string) ([]byte, error) {
	rc, _, err := ls.Get(relativePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Delete removes an asset file
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		log.Debug().Str("path", fullPath).Msg("media.store: deleted asset")
	}
	return nil
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	if relativePath == "" {
		return "", fmt.Errorf("empty asset path")
	}
	cleanRelativePath := filepath.Clean(filepath.FromSlash(relativePath))

	absFullPath, err := filepath.Abs(filepath.Join(ls.basePath, cleanRelativePath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !strings.HasPrefix(absFullPath, ls.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}

// cropDirs returns the ratio directories under an image's shard directory.
// Sibling directories of longer ids share the shard prefix and never parse as a
// ratio, so they are left alone.
func (ls *LocalStorage) cropDirs(id uint) ([]string, error) {
	dir, err := ls.GetFullPath(ShardPath(id))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list '%s': %w", dir, err)
	}

	var tokens []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := ParseRatio(entry.Name()); err == nil {
			tokens = append(tokens, entry.Name())
		}
	}
	return tokens, nil
}

func (ls *LocalStorage) ClearCrops(id uint, tokens ...string) error {
	if len(tokens) == 0 {
		var err error
		tokens, err = ls.cropDirs(id)
		if err != nil {
			return err
		}
	}

	for _, token := range tokens {
		if _, err := ParseRatio(token); err != nil {
			return err
		}
		dir, err := ls.GetFullPath(path.Join(ShardPath(id), token))
		if err != nil {
			return err
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear crops in '%s': %w", dir, err)
		}
		log.Debug().Uint("image_id", id).Str("ratio", token).Msg("media.store: cleared cached crops")
	}
	return nil
}

func (ls *LocalStorage) Renditions(id uint) ([]string, error) {
	tokens, err := ls.cropDirs(id)
	if err != nil {
		return nil, err
	}

	var renditions []string
	for _, token := range tokens {
		dir, err := ls.GetFullPath(path.Join(ShardPath(id), token))
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list '%s': %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			renditions = append(renditions, token+"/"+entry.Name())
		}
	}

	natsort.Sort(renditions)
	return renditions, nil
}
