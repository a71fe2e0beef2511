package app

import "errors"

var (
	ErrMalformedAsset = errors.New("malformed asset")
	ErrNoFileBuffer   = errors.New("no file buffer provided for upload")
	ErrRemoteStatus   = errors.New("remote request failed")
	ErrNoMetadata     = errors.New("no metadata")
)
