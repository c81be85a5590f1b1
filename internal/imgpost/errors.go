package imgpost

import (
	"fmt"
	"strings"
)

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError captures provider-specific validation issues.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// AuthError is returned when a session with the remote service cannot be
// established.
type AuthError struct {
	Provider string
	Err      error
}

func (e AuthError) Error() string {
	return fmt.Sprintf("%s login failed: %v", e.Provider, e.Err)
}

func (e AuthError) Unwrap() error { return e.Err }

// DecodeError is returned when a candidate file is empty or not a decodable
// image.
type DecodeError struct {
	Path string
	Err  error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }

// UploadError is returned when the remote service rejects the media upload.
type UploadError struct {
	Provider string
	Err      error
}

func (e UploadError) Error() string {
	return fmt.Sprintf("%s upload failed: %v", e.Provider, e.Err)
}

func (e UploadError) Unwrap() error { return e.Err }

// SubmitError is returned when the post record itself is rejected after the
// media made it up.
type SubmitError struct {
	Provider string
	Err      error
}

func (e SubmitError) Error() string {
	return fmt.Sprintf("%s submit failed: %v", e.Provider, e.Err)
}

func (e SubmitError) Unwrap() error { return e.Err }
