package topics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinDictionary(t *testing.T) {
	d := Builtin()

	assert.Equal(t, []string{
		"academics_finance", "countries", "gender_sexuality",
		"housing", "profanity", "race_ethnicity", "safety_crime",
	}, d.Categories())
	assert.GreaterOrEqual(t, d.Len(), 40)

	var names []string
	for _, term := range d.Terms("race_ethnicity") {
		names = append(names, term.Name)
	}
	assert.Contains(t, names, "racism")
	assert.Contains(t, names, "asian")
}

func TestMatchWholeWordOnly(t *testing.T) {
	d := Builtin()

	hits := d.Match("the asian student association meets today")
	require.Len(t, hits, 1)
	assert.Equal(t, Hit{Category: "race_ethnicity", Term: "asian"}, hits[0])

	assert.Empty(t, d.Match("caucasian cuisine is underrated"), "substring must not match")
	assert.Empty(t, d.Match("i wiped the blackboard"), "no boundary before board")

	assert.Len(t, d.Match("asians deserve better housing"), 2, "plural form and second category")
}

func TestMatchOncePerText(t *testing.T) {
	d := Builtin()
	hits := d.Match("racism here, racism there, racist everywhere")
	require.Len(t, hits, 1)
	assert.Equal(t, "racism", hits[0].Term)
}

func TestMatchCaseInsensitive(t *testing.T) {
	d := Builtin()
	assert.Len(t, d.Match("NYPD responded to the report"), 1)
	assert.Len(t, d.Match("Tuition went up again"), 1)
}

func TestMatchMultiWordSeparators(t *testing.T) {
	d := Builtin()
	for _, text := range []string{
		"applied for financial aid yesterday",
		"applied for financial-aid yesterday",
	} {
		hits := d.Match(text)
		require.Len(t, hits, 1, text)
		assert.Equal(t, "financial aid", hits[0].Term)
	}
}

func TestNewRejectsDuplicateTermAcrossCategories(t *testing.T) {
	_, err := New(map[string][]TermSpec{
		"a": {{Name: "shared"}},
		"b": {{Name: "Shared"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared")
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(map[string][]TermSpec{
		"a": {{Name: "broken", Pattern: `\b(unclosed`}},
	})
	require.Error(t, err)
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(map[string][]TermSpec{})
	require.Error(t, err)

	_, err = New(map[string][]TermSpec{"a": {}})
	require.Error(t, err)
}

func TestAutoPattern(t *testing.T) {
	d, err := New(map[string][]TermSpec{
		"test": {{Name: "meal plan"}, {Name: "advisor"}},
	})
	require.NoError(t, err)

	assert.Len(t, d.Match("the meal plan is a scam"), 1)
	assert.Len(t, d.Match("the meal-plan is a scam"), 1)
	assert.Len(t, d.Match("my advisors never reply"), 1, "plural accepted")
	assert.Empty(t, d.Match("mealtime planning"), "words must stay adjacent")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.yaml")
	content := `categories:
  race_ethnicity:
    - term: racism
      pattern: \bracism\b|\bracist(s)?\b
    - term: asian
  housing:
    - term: dorm
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"housing", "race_ethnicity"}, d.Categories())
	assert.Len(t, d.Match("racist dorm policies"), 2)
}

func TestLoadRejectsMissingFileAndEmpty(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: {}\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}
