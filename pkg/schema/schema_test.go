package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryDefaults(t *testing.T) {
	r, err := NewRegistry(Config{Dimensions: 1536})
	require.NoError(t, err)

	assert.Equal(t, "Content", r.ContentLabel())
	assert.Equal(t, "Speaker", r.SpeakerLabel())
	assert.Equal(t, "Topic", r.TopicLabel())
	assert.Equal(t, 1536, r.Dimensions())

	constraints := r.RequiredConstraints()
	require.Len(t, constraints, 3)
	for _, c := range constraints {
		assert.Equal(t, "id", c.Property)
	}
}

func TestNewRegistryNamespaced(t *testing.T) {
	r, err := NewRegistry(Config{Namespace: "GraphRAG", Dimensions: 384})
	require.NoError(t, err)

	assert.Equal(t, "GraphRAG_Content", r.ContentLabel())
	assert.Equal(t, "GraphRAG_Speaker", r.SpeakerLabel())
	assert.Equal(t, "GraphRAG_Topic", r.TopicLabel())

	spec, err := r.VectorIndexSpec(r.ContentLabel())
	require.NoError(t, err)
	assert.Equal(t, "graphrag_content_embedding", spec.IndexName)
	assert.Equal(t, 384, spec.Dimensions)
	assert.Equal(t, SimilarityCosine, spec.Similarity)

	ft, err := r.FulltextIndexSpec(r.ContentLabel())
	require.NoError(t, err)
	assert.Equal(t, "graphrag_content_fulltext", ft.IndexName)
	assert.Equal(t, []string{"title", "text"}, ft.Properties)
}

func TestNewRegistryInvalidDimensions(t *testing.T) {
	_, err := NewRegistry(Config{Dimensions: 0})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestUndeclaredIndexIsConfigurationError(t *testing.T) {
	r, err := NewRegistry(Config{Dimensions: 8})
	require.NoError(t, err)

	_, err = r.VectorIndexSpec(r.SpeakerLabel())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ConfigurationError{}))

	_, err = r.FulltextIndexSpec(r.TopicLabel())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ConfigurationError{}))
}

func TestLoadRegistryFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	doc := "namespace: Video\ndimensions: 768\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "Video_Content", r.ContentLabel())
	assert.Equal(t, 768, r.Dimensions())
}

func TestLoadRegistryBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dimensions: [not a number"), 0o644))

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ConfigurationError{}))
}

func TestVocabularyNamesEveryRelationship(t *testing.T) {
	r, err := NewRegistry(Config{Dimensions: 8})
	require.NoError(t, err)

	vocab := r.Vocabulary()
	assert.Contains(t, vocab, RelHasSpeaker)
	assert.Contains(t, vocab, RelMentions)
	assert.Contains(t, vocab, RelFollows)
	assert.Contains(t, vocab, "Content")
}
