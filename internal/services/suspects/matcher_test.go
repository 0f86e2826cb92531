package suspects

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-engine-go/internal/config"
	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
)

func galleryOf(entries ...models.SuspectEntry) *Gallery {
	return NewGallery(entries, "test", time.Now())
}

func TestMatch_SuspectFound(t *testing.T) {
	m := NewMatcher(0.6)
	m.Swap(galleryOf(
		models.SuspectEntry{SuspectID: "s1", Active: true, FeatureVectors: [][]float64{{1, 0, 0}}},
		models.SuspectEntry{SuspectID: "s5", Name: "Repeat Offender", Active: true, FeatureVectors: [][]float64{{0, 1, 0}, {0, 0.9, 0.1}}},
	))

	match, err := m.Match([]float64{0, 0.95, 0.05})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "s5", match.SuspectID)
	assert.Equal(t, "Repeat Offender", match.Name)
	assert.InDelta(t, 1-match.Distance, match.Similarity, 1e-12)
	assert.Less(t, match.Distance, 0.1)
}

func TestMatch_NoEntryWithinTolerance(t *testing.T) {
	m := NewMatcher(0.6)
	m.Swap(galleryOf(models.SuspectEntry{SuspectID: "s5", Active: true, FeatureVectors: [][]float64{{0, 1, 0}}}))

	match, err := m.Match([]float64{1, 0, 0})
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatch_NearestWinsNotFirst(t *testing.T) {
	m := NewMatcher(0.6)
	m.Swap(galleryOf(
		models.SuspectEntry{SuspectID: "far", Active: true, FeatureVectors: [][]float64{{0.5, 0}}},
		models.SuspectEntry{SuspectID: "near", Active: true, FeatureVectors: [][]float64{{0.1, 0}}},
	))

	match, err := m.Match([]float64{0, 0})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "near", match.SuspectID)
}

func TestMatch_TieKeepsGalleryOrder(t *testing.T) {
	m := NewMatcher(0.6)
	m.Swap(galleryOf(
		models.SuspectEntry{SuspectID: "a", Active: true, FeatureVectors: [][]float64{{0.2, 0}}},
		models.SuspectEntry{SuspectID: "b", Active: true, FeatureVectors: [][]float64{{-0.2, 0}}},
	))

	match, err := m.Match([]float64{0, 0})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "a", match.SuspectID)
}

func TestMatch_InactiveAndMismatchedDimensionsSkipped(t *testing.T) {
	m := NewMatcher(0.6)
	m.Swap(galleryOf(
		models.SuspectEntry{SuspectID: "inactive", Active: false, FeatureVectors: [][]float64{{0, 0}}},
		models.SuspectEntry{SuspectID: "wrong_dim", Active: true, FeatureVectors: [][]float64{{0, 0, 0}}},
		models.SuspectEntry{SuspectID: "ok", Active: true, FeatureVectors: [][]float64{{0.3, 0}}},
	))
	assert.Equal(t, 2, m.Gallery().Size())

	match, err := m.Match([]float64{0, 0})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "ok", match.SuspectID)
}

func TestMatch_AbsentVectorAndMissingGallery(t *testing.T) {
	m := NewMatcher(0.6)

	match, err := m.Match(nil)
	assert.NoError(t, err, "absent vector is not an error")
	assert.Nil(t, match)

	match, err = m.Match([]float64{1, 2})
	assert.Nil(t, match)
	assert.True(t, errors.Is(err, engineerrors.ErrGalleryUnavailable))
}

func TestFileSource_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "gallery.json")
	yamlPath := filepath.Join(dir, "gallery.yaml")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"suspects":[{"suspect_id":"s5","name":"x","feature_vectors":[[0,1]],"active":true}]}`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("suspects:\n  - suspect_id: s6\n    feature_vectors: [[1, 0]]\n    active: true\n"), 0o644))

	entries, err := FileSource{Path: jsonPath}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s5", entries[0].SuspectID)

	entries, err = FileSource{Path: yamlPath}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []float64{1, 0}, entries[0].FeatureVectors[0])
}

func TestDecodeHash(t *testing.T) {
	entries, err := decodeHash(map[string]string{
		"s2": `{"feature_vectors":[[1,1]],"active":true}`,
		"s1": `{"suspect_id":"s1","feature_vectors":[[0,0]],"active":false}`,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "s1", entries[0].SuspectID)
	assert.Equal(t, "s2", entries[1].SuspectID, "id falls back to the hash field")

	_, err = decodeHash(map[string]string{"bad": "{"})
	assert.Error(t, err)
}

type failingSource struct{ calls int }

func (f *failingSource) Name() string { return "failing" }
func (f *failingSource) Load(context.Context) ([]models.SuspectEntry, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestRefresher_FailedReloadKeepsSnapshot(t *testing.T) {
	cfg := &config.Config{SuspectGalleryRefresh: time.Minute}
	m := NewMatcher(0.6)

	path := filepath.Join(t.TempDir(), "gallery.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"suspects":[{"suspect_id":"s5","feature_vectors":[[0,1]],"active":true}]}`), 0o644))

	g, err := NewRefresher(cfg, m, FileSource{Path: path}).Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, g.Size())

	src := &failingSource{}
	_, err = NewRefresher(cfg, m, src).Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Same(t, g, m.Gallery())

	_, err = NewRefresher(cfg, m, nil).Reload(context.Background())
	assert.Error(t, err)
}
