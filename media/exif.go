package media

import (
	"bytes"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
)

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val == "" {
		return nil
	}
	return &val
}

// ExtractMetadata reads camera and capture time from JPEG EXIF data. Missing
// or unreadable EXIF is not an error; the result just stays empty.
func ExtractMetadata(data []byte) Metadata {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("metadata: no EXIF data found")
		return Metadata{}
	}

	meta := Metadata{
		CameraMake:  getString(exifData, exif.Make),
		CameraModel: getString(exifData, exif.Model),
	}

	dt, err := exifData.DateTime()
	if err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	} else {
		log.Debug().Err(err).Msg("metadata: could not read DateTimeOriginal")
	}

	return meta
}
