package textextract

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader reads converted Markdown reports from disk.
type Loader struct {
	log *slog.Logger
}

func NewLoader(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{log: log}
}

// Load reads path as UTF-8, dropping a BOM and any invalid byte sequences.
// The document id is the file stem.
func (l *Loader) Load(path string) (entity.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return entity.Document{}, fmt.Errorf("read document: %w", err)
	}
	return l.FromBytes(path, b)
}

// FromBytes builds a Document from content already in memory.
func (l *Loader) FromBytes(path string, b []byte) (entity.Document, error) {
	if strings.TrimSpace(path) == "" {
		return entity.Document{}, fmt.Errorf("%w: document path is required", common.ErrInvalidInput)
	}
	b = bytes.TrimPrefix(b, utf8BOM)

	raw := string(b)
	if !utf8.ValidString(raw) {
		l.log.Warn("textextract.invalid_utf8", "path", path)
		raw = strings.ToValidUTF8(raw, "")
	}

	return entity.Document{
		ID:   DocumentID(path),
		Path: path,
		Raw:  raw,
		Text: utils.NormalizeText(raw),
	}, nil
}

// DocumentID is the file name without directory and extension.
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
