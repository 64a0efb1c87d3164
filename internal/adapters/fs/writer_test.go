package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestWriter_Write(t *testing.T) {
	root := t.TempDir()
	writer := fs.NewWriter(fs.NewHasher())

	outputs := []domain.FileRecord{
		domain.NewFileRecord("src/scss/style.css", "src/scss", []byte("body{}")),
		domain.NewFileRecord("src/scss/pages/home.css", "src/scss", []byte(".home{}")),
	}

	changed, err := writer.Write(root, "dest/css", outputs)
	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.Equal(t, "dest/css/style.css", changed[0].Path)
	assert.Equal(t, "dest/css", changed[0].Base)
	assert.Equal(t, "style.css", changed[0].Rel())
	assert.Equal(t, "dest/css/pages/home.css", changed[1].Path)

	data, err := os.ReadFile(filepath.Join(root, "dest", "css", "pages", "home.css"))
	require.NoError(t, err)
	assert.Equal(t, ".home{}", string(data))

	t.Run("unchanged content is not rewritten", func(t *testing.T) {
		changed, err := writer.Write(root, "dest/css", outputs)
		require.NoError(t, err)
		assert.Empty(t, changed)
	})

	t.Run("changed content is reported", func(t *testing.T) {
		edited := []domain.FileRecord{outputs[0].WithContents([]byte("body{color:red}")), outputs[1]}
		changed, err := writer.Write(root, "dest/css", edited)
		require.NoError(t, err)
		require.Len(t, changed, 1)
		assert.Equal(t, "dest/css/style.css", changed[0].Path)
	})
}

func TestWriter_Write_OutsideRoot(t *testing.T) {
	root := t.TempDir()
	writer := fs.NewWriter(fs.NewHasher())

	_, err := writer.Write(root, "../elsewhere", []domain.FileRecord{
		domain.NewFileRecord("a.css", "", []byte("a")),
	})
	require.ErrorContains(t, err, domain.ErrOutputPathOutsideRoot.Error())
}
