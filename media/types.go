// media/types.go
package media

import "strings"

type AssetType string

const (
	AssetTypeSource    AssetType = "source"
	AssetTypeOptimized AssetType = "optimized"
	AssetTypeAnimated  AssetType = "animated"
)

const (
	AnimatedGIFName   = "original.gif"
	AnimatedStillName = "original.jpg"
)

// Extension describes an output format that can be requested for a derivative
type Extension struct {
	Name     string
	MimeType string
}

var (
	ExtensionJPEG = Extension{Name: "jpg", MimeType: "image/jpeg"}
	ExtensionPNG  = Extension{Name: "png", MimeType: "image/png"}
)

// LookupExtension maps a requested file extension onto a supported output format
func LookupExtension(ext string) (Extension, bool) {
	switch strings.ToLower(ext) {
	case ExtensionJPEG.Name:
		return ExtensionJPEG, true
	case ExtensionPNG.Name:
		return ExtensionPNG, true
	}
	return Extension{}, false
}

// Metadata holds the EXIF fields kept on an image record
type Metadata struct {
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}
