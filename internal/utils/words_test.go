package utils

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordBankChoices(t *testing.T) {
	bank := NewWordBank()

	choices := bank.Choices(3)
	require.Len(t, choices, 3)

	seen := make(map[string]bool)
	for _, w := range choices {
		assert.False(t, seen[w], "choices must be distinct, got %v", choices)
		seen[w] = true
	}
}

func TestWordBankChoicesSmallVocabulary(t *testing.T) {
	bank := &WordBank{words: []string{"only", "two"}, rng: rand.New(rand.NewSource(1))}

	choices := bank.Choices(3)
	assert.Len(t, choices, 2, "cannot hand out more words than the bank holds")
}

func TestWordBankFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte("car\nmoon\n  \nice cream\n"), 0o644))

	bank, err := NewWordBankFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 3, bank.Size(), "blank rows are skipped")
}

func TestWordBankFromCSVErrors(t *testing.T) {
	_, err := NewWordBankFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o644))
	_, err = NewWordBankFromCSV(empty)
	assert.Error(t, err, "an empty vocabulary is a configuration bug")
}

func TestMaskWord(t *testing.T) {
	assert.Equal(t, "", MaskWord(""))
	assert.Equal(t, "_ _ _", MaskWord("dog"))
	assert.Equal(t, "_ _ _   _ _ _ _ _", MaskWord("ice cream"))
}
