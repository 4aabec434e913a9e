package services

import "errors"

// User-facing messages are the error strings themselves
var (
	ErrInvalidPage          = errors.New("page out of range")
	ErrFeedUnavailable      = errors.New("Error fetching news feed")
	ErrFollowRecordNotFound = errors.New("follow record not found")
	ErrSelfFollow           = errors.New("cannot follow yourself")
	ErrNetworkNotLoaded     = errors.New("network view is not loaded")

	ErrEmptyContent     = errors.New("Post content cannot be empty.")
	ErrContentTooLong   = errors.New("Post content exceeds the character limit")
	ErrMediaTooLarge    = errors.New("Image size must be less than 5MB")
	ErrUnsupportedMedia = errors.New("Unsupported file type")
	ErrSubmitFailed     = errors.New("Post submission failed. Please try again.")

	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidOTP      = errors.New("invalid or expired code")
	ErrOTPRateLimited  = errors.New("too many code requests, try again later")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionRevoked  = errors.New("session has been signed out")
	ErrOAuthDisabled   = errors.New("federated sign-in is not configured")
	ErrOAuthStateMatch = errors.New("oauth state mismatch")
)
