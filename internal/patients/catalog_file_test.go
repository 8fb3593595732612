package patients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalogJSONKeepsCategoryOrder(t *testing.T) {
	data := []byte(`[
    {"symptom": "Chest Pain", "follow_up_questions": {
      "red_flags": ["Is the pain radiating to your arm?"],
      "characteristics": ["How long have you had it?", "Is it sharp or dull?"]
    }},
    {"symptom": "Dizziness", "follow_up_questions": {}}
  ]`)

	got, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Chest Pain", got[0].Name)
	require.Len(t, got[0].FollowUps, 2)
	assert.Equal(t, "red_flags", got[0].FollowUps[0].Category)
	assert.Equal(t, "characteristics", got[0].FollowUps[1].Category)
	assert.Len(t, got[0].FlattenQuestions(), 3)
	assert.Empty(t, got[1].FollowUps)
}

func TestParseCatalogYAMLListForm(t *testing.T) {
	data := []byte(`
- name: Palpitations
  follow_up_questions:
    - category: history
      questions:
        - Have you had this before?
`)
	got, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []QuestionGroup{{Category: "history", Questions: []string{"Have you had this before?"}}}, got[0].FollowUps)
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	_, err := ParseCatalog([]byte(`[{"follow_up_questions": {}}]`))
	assert.ErrorContains(t, err, "no symptom name")

	_, err = ParseCatalog([]byte(`[{"symptom": "A"}, {"symptom": "a"}]`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseCatalog([]byte(`[{"symptom": "A", "follow_up_questions": "nope"}]`))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`{not yaml`))
	assert.Error(t, err)
}
