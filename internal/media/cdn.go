package media

import (
	"fmt"
	"strings"
)

// Kind distinguishes image and video assets for URL shaping and deletion.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// CDN assembles public delivery URLs for stored asset references. The heavy
// lifting (resizing, format negotiation) happens on the CDN edge; this type
// only encodes the transformation segments.
type CDN struct {
	baseURL         string
	imageTransforms string
}

// NewCDN constructs a CDN URL builder rooted at baseURL.
func NewCDN(baseURL, imageTransforms string) CDN {
	return CDN{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		imageTransforms: strings.Trim(imageTransforms, "/"),
	}
}

// ImageURL returns the delivery URL for an image asset with the default
// fill/auto transformation chain. Empty references yield an empty URL.
func (c CDN) ImageURL(assetID string) string {
	if strings.TrimSpace(assetID) == "" {
		return ""
	}
	if c.imageTransforms == "" {
		return fmt.Sprintf("%s/image/%s.jpg", c.baseURL, assetID)
	}
	return fmt.Sprintf("%s/image/%s/%s.jpg", c.baseURL, c.imageTransforms, assetID)
}

// AvatarURL returns the delivery URL for a profile image: face-focused crop
// with rounded masking on top of the default chain.
func (c CDN) AvatarURL(assetID string) string {
	if strings.TrimSpace(assetID) == "" {
		return ""
	}
	transforms := "g_face,r_max"
	if c.imageTransforms != "" {
		transforms = c.imageTransforms + ",g_face,r_max"
	}
	return fmt.Sprintf("%s/image/%s/%s.jpg", c.baseURL, transforms, assetID)
}

// VideoURL returns the streaming URL for a video asset.
func (c CDN) VideoURL(assetID string) string {
	if strings.TrimSpace(assetID) == "" {
		return ""
	}
	return fmt.Sprintf("%s/video/%s.m3u8", c.baseURL, assetID)
}
