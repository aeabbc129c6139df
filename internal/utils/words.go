package utils

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

// defaultWords is the built-in drawing vocabulary used when no CSV file
// is configured.
var defaultWords = []string{
	"Apple",
	"Dog",
	"Skyline",
	"Pizza",
	"Rocket",
	"Guitar",
	"Laptop",
	"Elephant",
	"Tree",
	"Ocean",
	"Sushi",
	"Robot",
	"Volcano",
	"Parrot",
	"Skateboard",
}

// WordBank hands out word choices for drawers. Safe for concurrent use.
type WordBank struct {
	mu    sync.Mutex
	words []string
	rng   *rand.Rand
}

// NewWordBank returns a bank seeded with the built-in vocabulary.
func NewWordBank() *WordBank {
	return &WordBank{
		words: append([]string(nil), defaultWords...),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewWordBankFromCSV loads the vocabulary from a one-word-per-row CSV
// file, replacing the built-in list.
func NewWordBankFromCSV(filePath string) (*WordBank, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open words file %s: %w", filePath, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse words file %s: %w", filePath, err)
	}

	var words []string
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		word := strings.TrimSpace(record[0])
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("words file %s contains no words", filePath)
	}

	return &WordBank{
		words: words,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Size reports how many words the bank holds.
func (b *WordBank) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.words)
}

// Choices returns n distinct words drawn at random. When the vocabulary
// holds fewer than n words, every word is returned.
func (b *WordBank) Choices(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > len(b.words) {
		n = len(b.words)
	}
	picked := b.rng.Perm(len(b.words))[:n]

	choices := make([]string, 0, n)
	for _, i := range picked {
		choices = append(choices, b.words[i])
	}
	return choices
}

// MaskWord converts a word to underscores for display to guessers,
// preserving spaces, e.g. "ice cream" -> "_ _ _   _ _ _ _ _".
func MaskWord(word string) string {
	if word == "" {
		return ""
	}
	masked := make([]string, 0, len(word))
	for i := range word {
		if word[i] == ' ' {
			masked = append(masked, " ")
		} else {
			masked = append(masked, "_")
		}
	}
	return strings.Join(masked, " ")
}
