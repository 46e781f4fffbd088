package models

import "time"

// User represents an account within the Kaaltube platform.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Password     string
	Avatar       string
	CoverImage   string
	Verified     bool
	OTPHash      string
	OTPExpiresAt *time.Time
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sanitized returns a copy of the user with credential material stripped.
// This is the shape attached to authenticated requests.
func (u User) Sanitized() User {
	u.Password = ""
	u.RefreshToken = ""
	u.OTPHash = ""
	u.OTPExpiresAt = nil
	return u
}

// Video stores upload metadata for a single video. AssetID and Thumbnail are
// CDN asset references, not raw bytes.
type Video struct {
	ID          string
	OwnerID     string
	AssetID     string
	Thumbnail   string
	Title       string
	Description string
	Views       int64
	Likes       int64
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnedBy reports the account that created the video.
func (v Video) OwnedBy() string { return v.OwnerID }

// Comment is a single comment on a video.
type Comment struct {
	ID        string
	VideoID   string
	OwnerID   string
	Content   string
	Likes     int64
	Edited    bool
	EditedAt  *time.Time
	CreatedAt time.Time
}

// OwnedBy reports the account that wrote the comment.
func (c Comment) OwnedBy() string { return c.OwnerID }

// Subscription links a subscriber account to a channel (another account).
type Subscription struct {
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// OwnerSummary is the denormalized owner shape embedded in read models.
type OwnerSummary struct {
	ID       string
	Username string
	FullName string
	Avatar   string
}

// VideoWithOwner is a video row joined with its owner's public profile.
type VideoWithOwner struct {
	Video
	Owner OwnerSummary
}

// CommentWithOwner is a comment joined with its owner's public profile and
// the caller's like state.
type CommentWithOwner struct {
	Comment
	Owner   OwnerSummary
	IsLiked bool
}

// ChannelStats carries the aggregate counters shown on a channel page.
type ChannelStats struct {
	Subscribers int64
	Videos      int64
}

// VideoSearchHit is a ranked video match.
type VideoSearchHit struct {
	VideoWithOwner
	Relevance float64
}

// ChannelSearchHit is a ranked channel match.
type ChannelSearchHit struct {
	OwnerSummary
	Subscribers  int64
	IsSubscribed bool
	Relevance    float64
}

// Suggestion is a typeahead entry for the search box.
type Suggestion struct {
	Type        string
	Text        string
	Label       string
	Description string
}
