package models

import (
	"time"

	"github.com/camden-git/imagecropper/media"
)

// ImageStatus tracks where a record is in the ingestion lifecycle
type ImageStatus int

const (
	StatusPending ImageStatus = iota
	StatusDone
	StatusFailed
)

func (s ImageStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalText lets the status show up by name in API responses
func (s ImageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Image represents an image record in the database using GORM.
// It corresponds to the 'images' table.
type Image struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	Name     string      `gorm:"not null" json:"name"`
	Width    int         `gorm:"not null;default:0" json:"width"`
	Height   int         `gorm:"not null;default:0" json:"height"`
	Animated bool        `gorm:"not null;default:false" json:"animated"`
	Status   ImageStatus `gorm:"not null;index" json:"status"`

	URL        *string               `gorm:"" json:"url,omitempty"` // Nullable, set for remote ingestion
	Selections map[string]media.Rect `gorm:"serializer:json" json:"selections"`

	JPEGQuality *int       `gorm:"column:jpeg_quality" json:"jpeg_quality,omitempty"` // Nullable until optimized, stays nil for already optimal JPEGs
	OptimizedAt *time.Time `gorm:"index" json:"-"`                                    // Set once the optimizer has run, whatever it decided

	SourcePath    string `gorm:"" json:"-"`
	OptimizedPath string `gorm:"" json:"-"`

	CameraMake  *string `gorm:"" json:"camera_make,omitempty"`   // Nullable
	CameraModel *string `gorm:"" json:"camera_model,omitempty"`  // Nullable
	TakenAt     *int64  `gorm:"index" json:"taken_at,omitempty"` // Nullable, Unix timestamp

	FailureReason *string `gorm:"" json:"failure_reason,omitempty"` // Nullable

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}

// Selection returns the crop rectangle to use for ratio
func (i *Image) Selection(ratio media.Ratio) media.Rect {
	return media.ResolveSelection(i.Width, i.Height, i.Selections, ratio)
}

// SetSelection stores rect for ratio as given. It is validated on read.
func (i *Image) SetSelection(ratio media.Ratio, rect media.Rect) {
	if i.Selections == nil {
		i.Selections = make(map[string]media.Rect)
	}
	i.Selections[ratio.Token] = rect
}

// ApplyMetadata copies EXIF fields onto the record
func (i *Image) ApplyMetadata(meta media.Metadata) {
	i.CameraMake = meta.CameraMake
	i.CameraModel = meta.CameraModel
	i.TakenAt = meta.TakenAt
}
