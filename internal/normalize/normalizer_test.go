package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixpal/backend/internal/knowledge"
)

func TestNormalizeRejectsEmptyRequest(t *testing.T) {
	n := New()

	_, err := n.Normalize("", nil, false, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = n.Normalize("   \t\n  ", nil, false, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNormalizeAcceptsHintOnlyRequest(t *testing.T) {
	n := New()
	hint := knowledge.CategoryPlumbing

	q, err := n.Normalize("", &hint, false, "")
	require.NoError(t, err)
	assert.Empty(t, q.Terms)
	assert.Equal(t, []knowledge.Category{knowledge.CategoryPlumbing}, q.CategoryHints)
}

func TestNormalizeAcceptsImageOnlyRequest(t *testing.T) {
	n := New()

	q, err := n.Normalize("", nil, true, "corroded valve photo")
	require.NoError(t, err)
	assert.True(t, q.HasImageEvidence)
	assert.Equal(t, "corroded valve photo", q.ImageDescriptor)
	assert.Empty(t, q.CategoryHints)
}

func TestNormalizeLowercasesAndDropsStopWords(t *testing.T) {
	n := New()

	q, err := n.Normalize("The Faucet is Dripping in my Kitchen!", nil, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"faucet", "dripping", "kitchen"}, q.Terms)
	assert.Equal(t, "faucet dripping kitchen", q.Text)
}

func TestNormalizeDetectsCategoriesFromText(t *testing.T) {
	n := New()

	q, err := n.Normalize("grinding noise from the condenser fan", nil, false, "")
	require.NoError(t, err)
	assert.Equal(t, []knowledge.Category{knowledge.CategoryHVAC}, q.CategoryHints)
}

func TestNormalizeExplicitHintComesFirst(t *testing.T) {
	n := New()
	hint := knowledge.CategoryAppliance

	q, err := n.Normalize("leaking dishwasher", &hint, false, "")
	require.NoError(t, err)
	require.NotEmpty(t, q.CategoryHints)
	assert.Equal(t, knowledge.CategoryAppliance, q.CategoryHints[0])
	assert.Contains(t, q.CategoryHints, knowledge.CategoryPlumbing)
}

func TestNormalizeHintDeduplicatedAgainstDetection(t *testing.T) {
	n := New()
	hint := knowledge.CategoryPlumbing

	q, err := n.Normalize("the faucet leak", &hint, false, "")
	require.NoError(t, err)
	assert.Equal(t, []knowledge.Category{knowledge.CategoryPlumbing}, q.CategoryHints)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := New()

	a, err := n.Normalize("breaker keeps tripping", nil, false, "")
	require.NoError(t, err)
	b, err := n.Normalize("breaker keeps tripping", nil, false, "")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDetectCategoriesMultiple(t *testing.T) {
	cats := DetectCategories([]string{"leak", "under", "dishwasher"})
	assert.Equal(t, []knowledge.Category{knowledge.CategoryPlumbing, knowledge.CategoryAppliance}, cats)

	assert.Empty(t, DetectCategories([]string{"purple", "elephant"}))
	assert.Empty(t, DetectCategories(nil))
}

func TestTokensStripsPunctuation(t *testing.T) {
	n := New()
	assert.Equal(t, []string{"faucet", "drips"}, n.Tokens("faucet, drips..."))
	assert.Empty(t, n.Tokens(""))
	assert.Empty(t, n.Tokens("!!! ???"))
}
