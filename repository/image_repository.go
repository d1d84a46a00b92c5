package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/imagecropper/models"
)

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// GetByID retrieves an image record by its id
func (r *ImageRepository) GetByID(id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image %d: %w", id, err)
	}
	return &image, nil
}

// Create inserts a new record and assigns its id
func (r *ImageRepository) Create(image *models.Image) error {
	if err := r.DB.Create(image).Error; err != nil {
		return fmt.Errorf("failed to create image record: %w", err)
	}
	return nil
}

// Save writes the ingest columns of the record: status, geometry, paths and
// metadata. Selections belong to UpdateSelections and the quality columns to
// MarkOptimized, so saving a stale copy never drops those writes.
func (r *ImageRepository) Save(image *models.Image) error {
	if image.ID == 0 {
		return fmt.Errorf("cannot save image record without id")
	}
	result := r.DB.Model(image).Select("*").Omit("id", "created_at", "selections", "jpeg_quality", "optimized_at").Updates(image)
	if result.Error != nil {
		return fmt.Errorf("failed to save image %d: %w", image.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkOptimized records that the optimizer ran for id. quality is nil when the
// source was already optimal. Only jpeg_quality and optimized_at are written.
func (r *ImageRepository) MarkOptimized(id uint, quality *int) error {
	result := r.DB.Model(&models.Image{}).Where("id = ?", id).Updates(map[string]any{
		"jpeg_quality": quality,
		"optimized_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark image %d optimized: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateSelections sets only the selections column
func (r *ImageRepository) UpdateSelections(image *models.Image) error {
	result := r.DB.Model(image).Select("selections").Updates(image)
	if result.Error != nil {
		return fmt.Errorf("failed to update selections for image %d: %w", image.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
