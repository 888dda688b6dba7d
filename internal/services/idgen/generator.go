package idgen

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mcoot/assassingame/internal/dependencies/random"
	"github.com/mcoot/assassingame/internal/model"
)

const (
	// GameCodeLength is the length of generated game codes
	GameCodeLength = 8
	// GameCodeAlphabet is the characters used in game codes
	GameCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxCodenameAttempts bounds random regeneration before falling back to a numeric suffix
	maxCodenameAttempts = 50
)

var (
	//go:embed adjectives.txt
	adjectivesFile string
	//go:embed nouns.txt
	nounsFile string

	adjectives = loadWords(adjectivesFile)
	nouns      = loadWords(nounsFile)
)

// loadWords splits an embedded list into title-cased words
func loadWords(raw string) []string {
	caser := cases.Title(language.English)
	var words []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		words = append(words, caser.String(line))
	}
	return words
}

// Generator produces game codes and codenames
type Generator struct {
	random     random.Random
	adjectives []string
	nouns      []string
}

// New creates a Generator using the embedded word lists
func New(rnd random.Random) *Generator {
	return &Generator{
		random:     rnd,
		adjectives: adjectives,
		nouns:      nouns,
	}
}

// GameCode draws a fresh code. Uniqueness is left to the store.
func (g *Generator) GameCode() model.GameCode {
	return model.GameCode(g.random.String(GameCodeLength, GameCodeAlphabet))
}

// Codename joins a random adjective and noun, e.g. "Silent Falcon"
func (g *Generator) Codename() string {
	adjective := g.adjectives[g.random.Intn(len(g.adjectives))]
	noun := g.nouns[g.random.Intn(len(g.nouns))]
	return adjective + " " + noun
}

// UniqueCodename regenerates until the codename is not in taken
func (g *Generator) UniqueCodename(taken map[string]bool) string {
	var name string
	for range maxCodenameAttempts {
		name = g.Codename()
		if !taken[name] {
			return name
		}
	}
	// Word space is nearly exhausted for this game; disambiguate deterministically
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s %d", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// WordCounts returns the sizes of the adjective and noun lists
func (g *Generator) WordCounts() (int, int) {
	return len(g.adjectives), len(g.nouns)
}
