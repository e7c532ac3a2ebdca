package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/utils"
)

// ErrUnsupportedFormat is returned for file extensions with no extractor.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// otherFormat labels every unsupported extension. Extensions come from
// client file names and must not become label values.
const otherFormat = "other"

// SupportedExtensions lists the extensions ExtractText accepts.
var SupportedExtensions = []string{".pdf", ".docx", ".doc", ".txt"}

type Extractor struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewExtractor(logger *zap.Logger, m *metrics.Metrics) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger, metrics: m}
}

// ExtractText returns the plain text of the document at path, chosen by file
// extension. A supported document that cannot be read yields "" and a nil
// error; callers must check for empty text.
func (e *Extractor) ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var extract func(string) (string, error)
	switch ext {
	case ".pdf":
		extract = pdfText
	case ".docx", ".doc":
		extract = docxText
	case ".txt":
		extract = plainText
	default:
		e.metrics.ObserveDocument(otherFormat, "unsupported")
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	text, err := extract(path)
	if err != nil {
		e.logger.Warn("document text extraction failed",
			zap.String("path", path),
			zap.String("format", ext),
			zap.Error(err),
		)
		e.metrics.ObserveDocument(ext, "failed")
		return "", nil
	}

	text = strings.TrimSpace(utils.SanitizeUTF8(text))
	outcome := "ok"
	if text == "" {
		outcome = "empty"
	}
	e.metrics.ObserveDocument(ext, outcome)
	e.logger.Debug("document text extracted", zap.String("format", ext), zap.Int("length", len(text)))

	return text, nil
}

func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func pdfText(path string) (text string, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

const docxBody = "word/document.xml"

func docxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != docxBody {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", docxBody, err)
		}
		defer rc.Close()
		return paragraphs(rc)
	}

	return "", fmt.Errorf("docx has no %s", docxBody)
}

// paragraphs collects the text runs of a WordprocessingML body, one line per
// paragraph.
func paragraphs(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out    strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing %s: %w", docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return out.String(), nil
}
