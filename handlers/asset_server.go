package handlers

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

func setCacheHeaders(w http.ResponseWriter, cacheDuration time.Duration) {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
	w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))
}

// ServeAsset serves a stored file with long-lived cache headers. fullPath must
// already be resolved and checked against the storage root.
func ServeAsset(w http.ResponseWriter, r *http.Request, fullPath string, cacheDuration time.Duration) {
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Error().Err(err).Str("path", fullPath).Msg("handlers: error stating asset file")
		return
	}
	if info.IsDir() {
		http.NotFound(w, r)
		return
	}

	setCacheHeaders(w, cacheDuration)
	http.ServeFile(w, r, fullPath)
}
