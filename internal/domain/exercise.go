// internal/domain/exercise.go
package domain

import (
	"regexp"
	"strings"
	"time"
)

// Exercise represents a single exercise definition in a trainer's library.
type Exercise struct {
	ID          string `bson:"id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description" json:"description"`
	VideoURL    string `bson:"videoUrl" json:"videoUrl"` // embeddable form, see EmbedVideoURL
	// VideoObjectKey points at an uploaded demo video in object storage, if any.
	VideoObjectKey string    `bson:"videoObjectKey,omitempty" json:"-"`
	CreatedBy      string    `bson:"createdBy" json:"createdBy"` // trainer uid
	CreatedAt      time.Time `bson:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

var (
	watchParam = regexp.MustCompile(`[?&]v=([^&]+)`)
	shortLink  = regexp.MustCompile(`youtu\.be/([^?]+)`)
)

// EmbedVideoURL rewrites YouTube watch and short links into the
// https://www.youtube.com/embed/{id} form. Blank input yields "", URLs that
// are already embeds or are not recognised are returned unchanged.
func EmbedVideoURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if strings.Contains(raw, "/embed/") {
		return raw
	}

	var videoID string
	if m := watchParam.FindStringSubmatch(raw); m != nil {
		videoID = m[1]
	}
	if m := shortLink.FindStringSubmatch(raw); m != nil {
		videoID = m[1]
	}
	if videoID == "" {
		return raw
	}

	videoID = strings.SplitN(videoID, "&", 2)[0]
	videoID = strings.SplitN(videoID, "?", 2)[0]
	return "https://www.youtube.com/embed/" + videoID
}
