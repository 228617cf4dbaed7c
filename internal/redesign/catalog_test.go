package redesign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	var ids []string
	for _, s := range catalog.List() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"minimalista", "industrial", "biofilico", "contemporaneo"}, ids)

	style, err := catalog.Lookup("industrial")
	require.NoError(t, err)
	assert.Equal(t, "Industrial Chic", style.Name)
	assert.Equal(t, []string{"#3a3a3a", "#1a1a1a"}, style.Gradient)
}

func TestCatalogLookupUnknown(t *testing.T) {
	_, err := DefaultCatalog().Lookup("baroque")
	assert.ErrorIs(t, err, ErrUnknownStyle)
	assert.Equal(t, KindUnknownStyle, KindOf(err))
}

func TestCatalogListIsACopy(t *testing.T) {
	catalog := DefaultCatalog()
	list := catalog.List()
	list[0].Prompt = "changed"

	style, err := catalog.Lookup(list[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", style.Prompt)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("styles:\n  - {id: japandi, name: Japandi, prompt: \"Japandi interior\"}\n"), 0o644))

	catalog, err := LoadCatalogFile(path)
	require.NoError(t, err)
	style, err := catalog.Lookup("japandi")
	require.NoError(t, err)
	assert.Equal(t, "Japandi interior", style.Prompt)

	require.NoError(t, os.WriteFile(path, []byte("styles:\n  - {id: a, prompt: x}\n  - {id: a, prompt: y}\n"), 0o644))
	_, err = LoadCatalogFile(path)
	assert.Error(t, err)
}
