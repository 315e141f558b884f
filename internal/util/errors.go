package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in document")
	ErrNoUsableTerms     = errors.New("no usable terms after deduplication")
	ErrShortBatch        = errors.New("could not fill term batch after backfill")
	ErrAlreadyGenerated  = errors.New("document already has generated content")
	ErrDocumentNotFound  = errors.New("document not found")

	ErrUnsupportedMime = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds upload limit")
	ErrEmptyFile       = errors.New("file is empty")
)

// IsInputError reports whether err came from upload validation.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedMime) || errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrEmptyFile)
}
