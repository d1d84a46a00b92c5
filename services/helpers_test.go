package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"maps"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
)

// memoryRepo is an in-memory ImageRepositoryInterface that hands out copies,
// like a real database would.
type memoryRepo struct {
	mu            sync.Mutex
	nextID        uint
	images        map[uint]models.Image
	optimizeMarks int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, images: make(map[uint]models.Image)}
}

func cloneImage(img models.Image) models.Image {
	img.Selections = maps.Clone(img.Selections)
	return img
}

func (r *memoryRepo) GetByID(id uint) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := cloneImage(img)
	return &out, nil
}

func (r *memoryRepo) Create(img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img.ID = r.nextID
	r.nextID++
	r.images[img.ID] = cloneImage(*img)
	return nil
}

func (r *memoryRepo) Save(img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if img.ID == 0 {
		return errors.New("no id")
	}
	stored, ok := r.images[img.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	next := cloneImage(*img)
	next.Selections = stored.Selections
	next.JPEGQuality = stored.JPEGQuality
	next.OptimizedAt = stored.OptimizedAt
	r.images[img.ID] = next
	return nil
}

func (r *memoryRepo) MarkOptimized(id uint, quality *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	img.JPEGQuality = quality
	img.OptimizedAt = &now
	r.images[id] = img
	r.optimizeMarks++
	return nil
}

func (r *memoryRepo) UpdateSelections(img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.images[img.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Selections = maps.Clone(img.Selections)
	r.images[img.ID] = stored
	return nil
}

// recordingQueue remembers submitted tasks instead of running them
type recordingQueue struct {
	mu    sync.Mutex
	tasks []Task
	err   error
}

func (q *recordingQueue) Submit(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.tasks...)
}

func newTestStore(t *testing.T) *media.LocalStorage {
	t.Helper()
	store, err := media.NewLocalStorage(t.TempDir(), 3200)
	require.NoError(t, err)
	return store
}

func assetExists(t *testing.T, store media.Store, rel string) bool {
	t.Helper()
	_, err := store.ReadFile(rel)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	require.NoError(t, err)
	return true
}

func testSourceOptions() SourceOptions {
	return SourceOptions{MaxWidth: 3200, DefaultQuality: 80}
}

func testPicture(width, height int) *image.NRGBA {
	rng := rand.New(rand.NewSource(int64(width*height + 7)))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			noise := rng.Intn(12)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x*200/width + noise) % 256),
				G: uint8((y*200/height + noise) % 256),
				B: uint8(90 + noise),
				A: 255,
			})
		}
	}
	return img
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testPicture(width, height), imaging.PNG))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, width, height, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testPicture(width, height), imaging.JPEG, imaging.JPEGQuality(quality)))
	return buf.Bytes()
}

func gifBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	palette := color.Palette{color.Black, color.White, color.RGBA{R: 255, A: 255}}
	anim := &gif.GIF{}
	for i := 0; i < 3; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, width, height), palette)
		for x := 0; x < width; x++ {
			frame.SetColorIndex(x, (x+i)%height, uint8(i%len(palette)))
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	return buf.Bytes()
}

func mustRatio(t *testing.T, token string) media.Ratio {
	t.Helper()
	r, err := media.ParseRatio(token)
	require.NoError(t, err)
	return r
}
