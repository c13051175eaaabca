package service

import "errors"

var (
	ErrNoFile            = errors.New("no file selected")
	ErrUnsupportedFormat = errors.New("file type not allowed")
	ErrDurationUnknown   = errors.New("could not determine video duration")
	ErrSegmentation      = errors.New("video processing failed")
	ErrPackaging         = errors.New("failed to create download package")
	ErrStorage           = errors.New("storage failure")
	ErrInvalidObject     = errors.New("object does not belong to session")
	ErrArchiveNotFound   = errors.New("archive not found")
	ErrSessionInUse      = errors.New("session already processing or completed")
)
