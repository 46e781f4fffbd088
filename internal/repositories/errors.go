package repositories

import "errors"

var (
	// ErrNotFound reports that the user, video, comment, or subscription a
	// query asked for does not exist. Handlers translate it to a 404 (or a
	// 403 behind the ownership gate).
	ErrNotFound = errors.New("record not found")
	// ErrConflict reports a uniqueness violation, such as a taken username or
	// email or a duplicate subscription. Handlers translate it to a 409.
	ErrConflict = errors.New("record conflict")
)
