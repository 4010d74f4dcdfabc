package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText_PlainText(t *testing.T) {
	e := NewDocExtractor()

	text, err := e.ExtractText(context.Background(), "cv.txt", []byte("ten years of Go"), MIMEText)
	require.NoError(t, err)
	assert.Equal(t, "ten years of Go", text)
}

func TestExtractText_BareExtensionAndParams(t *testing.T) {
	e := NewDocExtractor()

	text, err := e.ExtractText(context.Background(), "cv.txt", []byte("hello"), "txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = e.ExtractText(context.Background(), "cv.txt", []byte("hello"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestExtractText_UnsupportedType(t *testing.T) {
	e := NewDocExtractor()

	_, err := e.ExtractText(context.Background(), "cv.xls", []byte{0x01}, "application/vnd.ms-excel")
	require.Error(t, err)

	var fe *FailedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "cv.xls", fe.Name)
}

func TestExtractText_CancelledContext(t *testing.T) {
	e := NewDocExtractor()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractText(ctx, "cv.txt", []byte("hello"), MIMEText)
	var fe *FailedError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMIMEForExtension(t *testing.T) {
	assert.Equal(t, MIMEPDF, MIMEForExtension(".pdf"))
	assert.Equal(t, MIMEDocx, MIMEForExtension("DOCX"))
	assert.Equal(t, MIMEText, MIMEForExtension(".txt"))
	assert.Equal(t, "", MIMEForExtension(".png"))
}
