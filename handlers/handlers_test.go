package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"maps"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/camden-git/imagecropper/config"
	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
	"github.com/camden-git/imagecropper/services"
)

const testAPIKey = "let-me-in"

type memoryRepo struct {
	mu     sync.Mutex
	nextID uint
	images map[uint]models.Image
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, images: make(map[uint]models.Image)}
}

func (r *memoryRepo) GetByID(id uint) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	img.Selections = maps.Clone(img.Selections)
	return &img, nil
}

func (r *memoryRepo) Create(img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if img.ID == 0 {
		img.ID = r.nextID
	}
	if img.ID >= r.nextID {
		r.nextID = img.ID + 1
	}
	stored := *img
	stored.Selections = maps.Clone(img.Selections)
	r.images[img.ID] = stored
	return nil
}

func (r *memoryRepo) Save(img *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if img.ID == 0 {
		return errors.New("no id")
	}
	prev, ok := r.images[img.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *img
	stored.Selections = prev.Selections
	stored.JPEGQuality = prev.JPEGQuality
	stored.OptimizedAt = prev.OptimizedAt
	r.images[img.ID] = stored
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

type nopQueue struct{}

func (nopQueue) Submit(context.Context, services.Task) error { return nil }

type testServer struct {
	cfg     config.Config
	repo    *memoryRepo
	store   *media.LocalStorage
	service *services.ImageService
	router  http.Handler
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)
	return config.Config{
		Ratios:             []string{"1x1", "2x1", "16x9"},
		MaxWidth:           3200,
		DefaultJPEGQuality: 80,
		MaxSourceBytes:     10 << 20,
		PlaceholderColors:  []string{"#153f5b"},
		APIKeyHash:         string(hash),
		AllowedOrigins:     []string{"*"},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	store, err := media.NewLocalStorage(t.TempDir(), cfg.MaxWidth)
	require.NoError(t, err)

	repo := newMemoryRepo()
	svc := services.NewImageService(repo, store, nopQueue{}, services.SourceOptions{
		MaxWidth:       cfg.MaxWidth,
		DefaultQuality: cfg.DefaultJPEGQuality,
	})
	renderer := services.NewRenderer(store, services.RendererOptions{
		MaxWidth:       cfg.MaxWidth,
		DefaultQuality: cfg.DefaultJPEGQuality,
	})

	crop, err := NewCropHandler(cfg, repo, renderer, store)
	require.NoError(t, err)
	api := &ImageAPIHandler{Cfg: cfg, Images: svc}

	return &testServer{
		cfg:     cfg,
		repo:    repo,
		store:   store,
		service: svc,
		router:  NewRouter(cfg, crop, api),
	}
}

func (s *testServer) do(t *testing.T, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodGet, target, nil, nil)
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func testGIF(t *testing.T) []byte {
	t.Helper()
	palette := color.Palette{color.Black, color.White}
	anim := &gif.GIF{}
	for i := 0; i < 2; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 20, 10), palette)
		frame.SetColorIndex(i, i, 1)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 5)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	return buf.Bytes()
}

func decodeImage(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}
