package extraction

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"lexiflow/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestValidateUpload(t *testing.T) {
	mime, err := ValidateUpload(pngHeader, "application/octet-stream", 1024)
	require.NoError(t, err)
	require.Equal(t, MimePNG, mime)

	mime, err = ValidateUpload([]byte("%PDF-1.7\n..."), "", 1024)
	require.NoError(t, err)
	require.Equal(t, MimePDF, mime)

	_, err = ValidateUpload(nil, MimePDF, 1024)
	require.ErrorIs(t, err, util.ErrEmptyFile)

	_, err = ValidateUpload(bytes.Repeat([]byte("a"), 2048), "text/plain", 1024)
	require.ErrorIs(t, err, util.ErrFileTooLarge)

	_, err = ValidateUpload([]byte("just some plain text"), "text/plain", 1024)
	require.ErrorIs(t, err, util.ErrUnsupportedMime)
	require.True(t, util.IsInputError(err))
}

type stubExtractor struct {
	text string
	err  error
	hits int
}

func (s *stubExtractor) Extract(context.Context, []byte, string) (string, error) {
	s.hits++
	return s.text, s.err
}

func TestChainFallsThroughEmptyResults(t *testing.T) {
	empty := &stubExtractor{text: "  \x00 "}
	ocr := &stubExtractor{text: "Hazard signs\x00 and exits"}
	c := NewChain(zerolog.Nop(), empty, ocr)

	text, err := c.Extract(context.Background(), []byte("x"), MimePNG)
	require.NoError(t, err)
	require.Equal(t, "Hazard signs and exits", text)
	require.Equal(t, 1, empty.hits)
}

func TestChainReportsNoText(t *testing.T) {
	c := NewChain(zerolog.Nop(), &stubExtractor{err: errors.New("timeout")}, &stubExtractor{err: errSkip})

	_, err := c.Extract(context.Background(), []byte("x"), MimePDF)
	require.ErrorIs(t, err, util.ErrNoExtractableText)
	require.Contains(t, err.Error(), "timeout")
}

func TestPDFTextSkipsImages(t *testing.T) {
	_, err := PDFText{}.Extract(context.Background(), pngHeader, MimePNG)
	require.ErrorIs(t, err, errSkip)
}
