package document

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/interview-coach/internal/metrics"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Expert in </w:t></w:r><w:r><w:t>Python</w:t></w:r><w:r><w:tab/><w:t>and Go</w:t></w:r></w:p>
    <w:p><w:r><w:t>Docker</w:t><w:br/><w:t>Kubernetes</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDocx(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, body := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestExtractTextPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.TXT")
	require.NoError(t, os.WriteFile(path, []byte("\n  Go developer with PostgreSQL  \n\n"), 0o600))

	text, err := NewExtractor(zap.NewNop(), nil).ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "Go developer with PostgreSQL", text)
}

func TestExtractTextDocx(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"resume.docx", "resume.doc"} {
		path := filepath.Join(dir, name)
		writeDocx(t, path, map[string]string{
			"[Content_Types].xml": "<Types/>",
			"word/document.xml":   documentXML,
		})

		text, err := NewExtractor(zap.NewNop(), nil).ExtractText(path)
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe\nExpert in Python\tand Go\nDocker\nKubernetes", text)
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	_, err := NewExtractor(zap.NewNop(), m).ExtractText("/tmp/resume.odt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewExtractor(zap.NewNop(), m).ExtractText("/tmp/resume")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocumentsExtracted.WithLabelValues("other", "unsupported")))
}

func TestUnsupportedExtensionsShareOneSeries(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	extractor := NewExtractor(zap.NewNop(), m)

	for _, name := range []string{"cv.a1", "cv.a2", "cv.a3", "cv.zzz", "cv.exe"} {
		_, err := extractor.ExtractText(filepath.Join("/tmp", name))
		require.ErrorIs(t, err, ErrUnsupportedFormat)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.DocumentsExtracted))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DocumentsExtracted.WithLabelValues("other", "unsupported")))
}

func TestExtractTextFailuresReturnEmpty(t *testing.T) {
	dir := t.TempDir()

	brokenDocx := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(brokenDocx, []byte("not a zip"), 0o600))

	noBody := filepath.Join(dir, "nobody.docx")
	writeDocx(t, noBody, map[string]string{"[Content_Types].xml": "<Types/>"})

	brokenPDF := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(brokenPDF, []byte("%PDF-1.4 garbage"), 0o600))

	missing := filepath.Join(dir, "missing.txt")

	for _, path := range []string{brokenDocx, noBody, brokenPDF, missing} {
		core, logs := observer.New(zap.WarnLevel)

		text, err := NewExtractor(zap.New(core), nil).ExtractText(path)
		require.NoError(t, err, path)
		assert.Empty(t, text, path)
		assert.Equal(t, 1, logs.FilterMessage("document text extraction failed").Len(), path)
	}
}

func TestExtractTextEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte(" \n\t"), 0o600))

	text, err := NewExtractor(nil, nil).ExtractText(path)
	require.NoError(t, err)
	assert.Empty(t, text)
}
