package textextract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t20250901_312973.md")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("表1\r\n| 新型冠状病毒 | ６.８％ | 3.7 |\xff\n")...)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	doc, err := NewLoader(nil).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "t20250901_312973", doc.ID)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "表1\r\n| 新型冠状病毒 | ６.８％ | 3.7 |\n", doc.Raw)
	assert.Equal(t, "表1\n| 新型冠状病毒 | 6.8% | 3.7 |\n", doc.Text)
}

func TestLoad_Errors(t *testing.T) {
	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "missing.md"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = NewLoader(nil).FromBytes(" ", []byte("x"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "report", DocumentID("/a/b/report.markdown"))
	assert.Equal(t, "t2025.09.01", DocumentID("t2025.09.01.md"))
	assert.Equal(t, "noext", DocumentID("noext"))
}
