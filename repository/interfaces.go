package repository

import (
	"github.com/camden-git/imagecropper/models"
)

// ImageRepositoryInterface defines the methods for image data operations.
// Lookups of unknown ids return gorm.ErrRecordNotFound.
type ImageRepositoryInterface interface {
	GetByID(id uint) (*models.Image, error)
	Create(image *models.Image) error
	Save(image *models.Image) error
	MarkOptimized(id uint, quality *int) error
	UpdateSelections(image *models.Image) error
}
