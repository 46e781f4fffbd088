package handlers

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/kaaltube/backend/internal/email"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/models"
	"github.com/kaaltube/backend/internal/repositories"
)

// memUsers is an in-memory UserStore that also satisfies the auth package's
// store interfaces, so router tests can run the real token and OTP services.
type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]models.User)}
}

func (m *memUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (m *memUsers) FindByEmail(_ context.Context, emailAddr string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == emailAddr {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (m *memUsers) FindByUsernameOrEmail(_ context.Context, username, emailAddr string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if (username != "" && user.Username == username) || (emailAddr != "" && user.Email == emailAddr) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (m *memUsers) update(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&user)
	m.users[id] = user
	return nil
}

func (m *memUsers) SetRefreshToken(_ context.Context, userID, token string) error {
	return m.update(userID, func(u *models.User) { u.RefreshToken = token })
}

func (m *memUsers) SaveOTP(_ context.Context, userID, otpHash string, expiresAt time.Time) error {
	return m.update(userID, func(u *models.User) {
		u.OTPHash = otpHash
		u.OTPExpiresAt = &expiresAt
	})
}

func (m *memUsers) MarkVerified(_ context.Context, userID string) error {
	return m.update(userID, func(u *models.User) {
		u.Verified = true
		u.OTPHash = ""
		u.OTPExpiresAt = nil
	})
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return m.update(userID, func(u *models.User) { u.Password = passwordHash })
}

func (m *memUsers) UpdateProfile(_ context.Context, userID, fullName, username, emailAddr string) error {
	return m.update(userID, func(u *models.User) {
		u.FullName = fullName
		u.Username = username
		u.Email = emailAddr
	})
}

func (m *memUsers) SetAvatar(_ context.Context, userID, assetID string) error {
	return m.update(userID, func(u *models.User) { u.Avatar = assetID })
}

func (m *memUsers) SetCoverImage(_ context.Context, userID, assetID string) error {
	return m.update(userID, func(u *models.User) { u.CoverImage = assetID })
}

// captureSender records dispatched emails for inspection.
type captureSender struct {
	mu       sync.Mutex
	messages []email.Message
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureSender) last() (email.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return email.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// memVideos is an in-memory VideoStore.
type memVideos struct {
	mu      sync.Mutex
	videos  map[string]models.Video
	owners  map[string]models.OwnerSummary
	viewers map[string]map[string]bool
	history map[string][]string
}

func newMemVideos(owners map[string]models.OwnerSummary) *memVideos {
	return &memVideos{
		videos:  make(map[string]models.Video),
		owners:  owners,
		viewers: make(map[string]map[string]bool),
		history: make(map[string][]string),
	}
}

func (m *memVideos) Create(_ context.Context, video models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.videos[video.ID]; exists {
		return repositories.ErrConflict
	}
	m.videos[video.ID] = video
	return nil
}

func (m *memVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	video, ok := m.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (m *memVideos) withOwner(video models.Video) models.VideoWithOwner {
	return models.VideoWithOwner{Video: video, Owner: m.owners[video.OwnerID]}
}

func (m *memVideos) FindByIDWithOwner(ctx context.Context, id string) (models.VideoWithOwner, error) {
	video, err := m.FindByID(ctx, id)
	if err != nil {
		return models.VideoWithOwner{}, err
	}
	return m.withOwner(video), nil
}

func (m *memVideos) ListPublished(_ context.Context, limit int) ([]models.VideoWithOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VideoWithOwner
	for _, video := range m.videos {
		if video.Published {
			out = append(out, m.withOwner(video))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memVideos) ListByOwner(_ context.Context, ownerID string) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Video
	for _, video := range m.videos {
		if video.OwnerID == ownerID {
			out = append(out, video)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memVideos) updateVideo(id string, fn func(*models.Video)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	video, ok := m.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&video)
	m.videos[id] = video
	return nil
}

func (m *memVideos) SetPublished(_ context.Context, id string, published bool) error {
	return m.updateVideo(id, func(v *models.Video) { v.Published = published })
}

func (m *memVideos) Update(_ context.Context, id, title, description, thumbnail string) error {
	return m.updateVideo(id, func(v *models.Video) {
		v.Title = title
		v.Description = description
		v.Thumbnail = thumbnail
	})
}

func (m *memVideos) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.videos, id)
	return nil
}

func (m *memVideos) RecordView(_ context.Context, videoID, viewerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	video, ok := m.videos[videoID]
	if !ok {
		return false, repositories.ErrNotFound
	}
	seen := m.viewers[videoID]
	if seen == nil {
		seen = make(map[string]bool)
		m.viewers[videoID] = seen
	}
	if seen[viewerID] {
		return false, nil
	}
	seen[viewerID] = true
	video.Views++
	m.videos[videoID] = video
	return true, nil
}

func (m *memVideos) UpsertWatchHistory(_ context.Context, userID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[userID]
	for i, id := range entries {
		if id == videoID {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	m.history[userID] = append([]string{videoID}, entries...)
	return nil
}

func (m *memVideos) ListWatchHistory(_ context.Context, userID string) ([]models.VideoWithOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VideoWithOwner
	for _, id := range m.history[userID] {
		if video, ok := m.videos[id]; ok {
			out = append(out, m.withOwner(video))
		}
	}
	return out, nil
}

func (m *memVideos) RemoveWatchHistory(_ context.Context, userID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[userID]
	for i, id := range entries {
		if id == videoID {
			m.history[userID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// memComments is an in-memory CommentStore.
type memComments struct {
	mu       sync.Mutex
	comments map[string]models.Comment
	owners   map[string]models.OwnerSummary
	liked    map[string]map[string]bool
}

func newMemComments(owners map[string]models.OwnerSummary) *memComments {
	return &memComments{
		comments: make(map[string]models.Comment),
		owners:   owners,
		liked:    make(map[string]map[string]bool),
	}
}

func (m *memComments) Create(_ context.Context, comment models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[comment.ID] = comment
	return nil
}

func (m *memComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (m *memComments) ListForVideo(_ context.Context, videoID, viewerID string) ([]models.CommentWithOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CommentWithOwner
	for _, comment := range m.comments {
		if comment.VideoID != videoID {
			continue
		}
		out = append(out, models.CommentWithOwner{
			Comment: comment,
			Owner:   m.owners[comment.OwnerID],
			IsLiked: viewerID != "" && m.liked[comment.ID][viewerID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memComments) Update(_ context.Context, id, content string) (models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	comment.Content = content
	comment.Edited = true
	now := time.Now()
	comment.EditedAt = &now
	m.comments[id] = comment
	return comment, nil
}

func (m *memComments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

// memLikes is an in-memory LikeStore backed by the video and comment fakes.
type memLikes struct {
	mu       sync.Mutex
	videos   *memVideos
	comments *memComments
	byVideo  map[string]map[string]bool
}

func newMemLikes(videos *memVideos, comments *memComments) *memLikes {
	return &memLikes{videos: videos, comments: comments, byVideo: make(map[string]map[string]bool)}
}

func (m *memLikes) ToggleVideoLike(_ context.Context, videoID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := m.byVideo[videoID]
	if users == nil {
		users = make(map[string]bool)
		m.byVideo[videoID] = users
	}
	if users[userID] {
		delete(users, userID)
		_ = m.videos.updateVideo(videoID, func(v *models.Video) { v.Likes-- })
		return false, nil
	}
	users[userID] = true
	_ = m.videos.updateVideo(videoID, func(v *models.Video) { v.Likes++ })
	return true, nil
}

func (m *memLikes) RemoveVideoLike(_ context.Context, videoID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byVideo[videoID][userID] {
		delete(m.byVideo[videoID], userID)
		_ = m.videos.updateVideo(videoID, func(v *models.Video) { v.Likes-- })
	}
	return nil
}

func (m *memLikes) ListLikedVideos(ctx context.Context, userID string, limit int) ([]models.VideoWithOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VideoWithOwner
	for videoID, users := range m.byVideo {
		if users[userID] {
			if video, err := m.videos.FindByID(ctx, videoID); err == nil {
				out = append(out, m.videos.withOwner(video))
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLikes) ToggleCommentLike(_ context.Context, commentID, userID string) (bool, error) {
	m.comments.mu.Lock()
	defer m.comments.mu.Unlock()
	users := m.comments.liked[commentID]
	if users == nil {
		users = make(map[string]bool)
		m.comments.liked[commentID] = users
	}
	if users[userID] {
		delete(users, userID)
		if comment, ok := m.comments.comments[commentID]; ok {
			comment.Likes--
			m.comments.comments[commentID] = comment
		}
		return false, nil
	}
	users[userID] = true
	if comment, ok := m.comments.comments[commentID]; ok {
		comment.Likes++
		m.comments.comments[commentID] = comment
	}
	return true, nil
}

// memSubscriptions is an in-memory SubscriptionStore.
type memSubscriptions struct {
	mu       sync.Mutex
	channels map[string]models.OwnerSummary
	subs     map[string]map[string]bool
}

func newMemSubscriptions(channels map[string]models.OwnerSummary) *memSubscriptions {
	return &memSubscriptions{channels: channels, subs: make(map[string]map[string]bool)}
}

func (m *memSubscriptions) Subscribe(_ context.Context, subscriberID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[subscriberID] == nil {
		m.subs[subscriberID] = make(map[string]bool)
	}
	m.subs[subscriberID][channelID] = true
	return nil
}

func (m *memSubscriptions) Unsubscribe(_ context.Context, subscriberID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs[subscriberID], channelID)
	return nil
}

func (m *memSubscriptions) ListChannels(_ context.Context, subscriberID string) ([]models.OwnerSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OwnerSummary
	for channelID := range m.subs[subscriberID] {
		out = append(out, m.channels[channelID])
	}
	return out, nil
}

func (m *memSubscriptions) IsSubscribed(_ context.Context, subscriberID, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[subscriberID][channelID], nil
}

func (m *memSubscriptions) ChannelStats(_ context.Context, channelID string) (models.ChannelStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := models.ChannelStats{}
	for _, channels := range m.subs {
		if channels[channelID] {
			stats.Subscribers++
		}
	}
	return stats, nil
}

func (m *memSubscriptions) FindChannel(_ context.Context, channelID string) (models.OwnerSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return models.OwnerSummary{}, repositories.ErrNotFound
	}
	return channel, nil
}

// staticSearch returns canned hits.
type staticSearch struct {
	videoHits      []models.VideoSearchHit
	channelHits    []models.ChannelSearchHit
	channelSuggest []models.Suggestion
	videoSuggest   []models.Suggestion
}

func (s *staticSearch) SearchVideos(context.Context, string, int) ([]models.VideoSearchHit, error) {
	return s.videoHits, nil
}

func (s *staticSearch) SearchChannels(context.Context, string, string, int) ([]models.ChannelSearchHit, error) {
	return s.channelHits, nil
}

func (s *staticSearch) SuggestChannels(_ context.Context, _ string, limit int) ([]models.Suggestion, error) {
	if len(s.channelSuggest) > limit {
		return s.channelSuggest[:limit], nil
	}
	return s.channelSuggest, nil
}

func (s *staticSearch) SuggestVideos(_ context.Context, _ string, limit int) ([]models.Suggestion, error) {
	if len(s.videoSuggest) > limit {
		return s.videoSuggest[:limit], nil
	}
	return s.videoSuggest, nil
}

// fakeUploader stores uploaded bytes in memory.
type fakeUploader struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{saved: make(map[string][]byte)}
}

func (f *fakeUploader) Save(_ context.Context, key string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[key] = buf.Bytes()
	return key, nil
}

// fakeCleaner records enqueued deletions.
type fakeCleaner struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeCleaner) Enqueue(_ context.Context, kind media.Kind, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, string(kind)+"/"+assetID)
	return nil
}
