// Package errors defines the typed failure classes of the pull engine.
package errors

import (
	stderrors "errors"
)

type Kind string

const (
	AccessDenied              Kind = "ACCESS_DENIED"
	ResponseNotOkay           Kind = "RESPONSE_NOT_OKAY"
	InvalidResponse           Kind = "INVALID_RESPONSE"
	RemoteFileNotFound        Kind = "REMOTE_FILE_NOT_FOUND"
	ChecksumMismatch          Kind = "CHECKSUM_MISMATCH"
	Request                   Kind = "REQUEST"
	ReachedMaxDownloadAttempt Kind = "REACHED_MAX_DOWNLOAD_ATTEMPT"
	InvalidFormat             Kind = "INVALID_FORMAT"
	DirectoryTraversal        Kind = "DIRECTORY_TRAVERSAL"
	OidNotValidHex            Kind = "OID_NOT_VALID_HEX"
	UrlParsing                Kind = "URL_PARSING"
	InvalidHeaderValue        Kind = "INVALID_HEADER_VALUE"
	FatFileIO                 Kind = "FAT_FILE_IO"
	TempFile                  Kind = "TEMP_FILE"
)

type Error struct {
	Kind    Kind
	Message string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// FileIO annotates a filesystem failure with the path it happened on.
func FileIO(path string, err error) *Error {
	return &Error{
		Kind:    FatFileIO,
		Message: "file IO error",
		Path:    path,
		Err:     err,
	}
}

// KindOf returns the kind of the outermost typed error in err's chain,
// or the empty kind when there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether another download attempt may succeed.
// Credential and parse failures never become true on retry; transport
// faults, bad statuses, missing remote objects and checksum mismatches
// are treated as transient.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ResponseNotOkay, InvalidResponse, RemoteFileNotFound, ChecksumMismatch, Request:
		return true
	default:
		return false
	}
}
