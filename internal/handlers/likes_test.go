package handlers

import (
	"context"
	"net/http"
	"testing"

	json "github.com/goccy/go-json"
)

func TestToggleVideoLike(t *testing.T) {
	stack := newTestStack(t)
	owner := seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")
	viewer := seedVerifiedUser(t, stack, "grace", "grace@example.com", "longenough")
	video := seedVideo(t, stack, owner, "popular", true)
	session := stack.sessionFor(t, viewer)

	rec := stack.do(http.MethodPost, "/api/v1/likes/toggle/v/"+video.ID, session)
	if rec.Code != http.StatusOK {
		t.Fatalf("like: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var state likeResponse
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !state.Liked || env.Message != "video liked" {
		t.Fatalf("expected liked state, got %+v message %q", state, env.Message)
	}
	if stored, _ := stack.videos.FindByID(context.Background(), video.ID); stored.Likes != 1 {
		t.Fatalf("expected like counter 1, got %d", stored.Likes)
	}

	rec = stack.do(http.MethodPost, "/api/v1/likes/toggle/v/"+video.ID, session)
	env = decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Liked || env.Message != "like removed" {
		t.Fatalf("expected unliked state, got %+v message %q", state, env.Message)
	}
	if stored, _ := stack.videos.FindByID(context.Background(), video.ID); stored.Likes != 0 {
		t.Fatalf("expected like counter back to 0, got %d", stored.Likes)
	}
}

func TestToggleLikeMissingTargets(t *testing.T) {
	stack := newTestStack(t)
	viewer := seedVerifiedUser(t, stack, "grace", "grace@example.com", "longenough")
	session := stack.sessionFor(t, viewer)

	if rec := stack.do(http.MethodPost, "/api/v1/likes/toggle/v/nope", session); rec.Code != http.StatusNotFound {
		t.Fatalf("missing video: expected 404, got %d", rec.Code)
	}
	if rec := stack.do(http.MethodPost, "/api/v1/likes/toggle/c/nope", session); rec.Code != http.StatusNotFound {
		t.Fatalf("missing comment: expected 404, got %d", rec.Code)
	}
}

func TestToggleCommentLike(t *testing.T) {
	stack := newTestStack(t)
	owner := seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")
	video := seedVideo(t, stack, owner, "discussed", true)
	comment := seedComment(t, stack, video.ID, owner, "hot take")
	session := stack.sessionFor(t, owner)

	rec := stack.do(http.MethodPost, "/api/v1/likes/toggle/c/"+comment.ID, session)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "comment liked" {
		t.Fatalf("expected comment liked message, got %q", env.Message)
	}
	if stored, _ := stack.comments.FindByID(context.Background(), comment.ID); stored.Likes != 1 {
		t.Fatalf("expected comment like counter 1, got %d", stored.Likes)
	}
}

func TestLikedVideosList(t *testing.T) {
	stack := newTestStack(t)
	owner := seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")
	viewer := seedVerifiedUser(t, stack, "grace", "grace@example.com", "longenough")
	liked := seedVideo(t, stack, owner, "liked", true)
	seedVideo(t, stack, owner, "ignored", true)
	session := stack.sessionFor(t, viewer)

	if rec := stack.do(http.MethodPost, "/api/v1/likes/toggle/v/"+liked.ID, session); rec.Code != http.StatusOK {
		t.Fatalf("like: expected 200, got %d", rec.Code)
	}

	rec := stack.do(http.MethodGet, "/api/v1/likes/videos", session)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var videos []videoResponse
	if err := json.Unmarshal(env.Data, &videos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != liked.ID {
		t.Fatalf("expected only the liked video, got %+v", videos)
	}
}

func TestRemoveVideoLikeIdempotent(t *testing.T) {
	stack := newTestStack(t)
	owner := seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")
	viewer := seedVerifiedUser(t, stack, "grace", "grace@example.com", "longenough")
	video := seedVideo(t, stack, owner, "liked", true)
	session := stack.sessionFor(t, viewer)

	if rec := stack.do(http.MethodPost, "/api/v1/likes/toggle/v/"+video.ID, session); rec.Code != http.StatusOK {
		t.Fatalf("like: got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		if rec := stack.do(http.MethodDelete, "/api/v1/likes/v/"+video.ID, session); rec.Code != http.StatusOK {
			t.Fatalf("remove attempt %d: got %d", i, rec.Code)
		}
	}
	if stored, _ := stack.videos.FindByID(context.Background(), video.ID); stored.Likes != 0 {
		t.Fatalf("expected counter 0, got %d", stored.Likes)
	}
}

func TestLikesRequireSession(t *testing.T) {
	stack := newTestStack(t)
	if rec := stack.do(http.MethodGet, "/api/v1/likes/videos"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
