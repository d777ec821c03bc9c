package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"lingo-challenge-service/internal/domain"
)

// StaticCurriculum is an in-memory curriculum corpus keyed by
// (language, category), useful for tests and demo mode.
type StaticCurriculum struct {
	mu    sync.Mutex
	items map[string][]domain.CurriculumItem
	rnd   *rand.Rand
}

func NewStaticCurriculum() *StaticCurriculum {
	return &StaticCurriculum{
		items: make(map[string][]domain.CurriculumItem),
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed replaces the pool for a (language, category) pair.
func (c *StaticCurriculum) Seed(language, category string, items []domain.CurriculumItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[poolKey(language, category)] = items
}

func (c *StaticCurriculum) Count(_ context.Context, language, category string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items[poolKey(language, category)]), nil
}

// Sample draws up to n items without replacement, excluding the given IDs.
func (c *StaticCurriculum) Sample(_ context.Context, language, category string, n int, excludeIDs []string) ([]domain.CurriculumItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	var eligible []domain.CurriculumItem
	for _, item := range c.items[poolKey(language, category)] {
		if !excluded[item.ID] {
			eligible = append(eligible, item)
		}
	}
	c.rnd.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	if n < len(eligible) {
		eligible = eligible[:n]
	}
	return eligible, nil
}

func poolKey(language, category string) string {
	return strings.ToLower(language) + ":" + strings.ToLower(category)
}

// StaticGrammar serves grammar exercises and rules from memory.
type StaticGrammar struct {
	mu        sync.Mutex
	exercises map[string][]domain.GrammarExercise
	rules     map[string][]domain.GrammarRule
}

func NewStaticGrammar() *StaticGrammar {
	return &StaticGrammar{
		exercises: make(map[string][]domain.GrammarExercise),
		rules:     make(map[string][]domain.GrammarRule),
	}
}

func (g *StaticGrammar) SeedExercises(language, difficulty string, exercises []domain.GrammarExercise) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exercises[poolKey(language, difficulty)] = exercises
}

func (g *StaticGrammar) SeedRules(language, difficulty string, rules []domain.GrammarRule) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[poolKey(language, difficulty)] = rules
}

func (g *StaticGrammar) MultipleChoiceExercises(_ context.Context, language, difficulty string) ([]domain.GrammarExercise, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var mc []domain.GrammarExercise
	for _, ex := range g.exercises[poolKey(language, difficulty)] {
		if ex.Type == "multiple_choice" {
			mc = append(mc, ex)
		}
	}
	return mc, nil
}

func (g *StaticGrammar) ExercisesForTopic(_ context.Context, language, difficulty string) ([]domain.GrammarExercise, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exercises[poolKey(language, difficulty)], nil
}

func (g *StaticGrammar) Rules(_ context.Context, language, difficulty string) ([]domain.GrammarRule, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rules[poolKey(language, difficulty)], nil
}

// StaticCatalog is a fixed language catalog.
type StaticCatalog struct {
	languages map[string]domain.Language
}

func NewStaticCatalog(languages ...domain.Language) *StaticCatalog {
	m := make(map[string]domain.Language, len(languages))
	for _, l := range languages {
		m[strings.ToLower(l.Code)] = l
	}
	return &StaticCatalog{languages: m}
}

func (c *StaticCatalog) Language(code string) (domain.Language, bool) {
	l, ok := c.languages[strings.ToLower(code)]
	return l, ok
}

// StaticAccounts answers IsPaid from a fixed set of paid creator IDs.
type StaticAccounts struct {
	paid map[string]bool
}

func NewStaticAccounts(paidCreatorIDs ...string) *StaticAccounts {
	m := make(map[string]bool, len(paidCreatorIDs))
	for _, id := range paidCreatorIDs {
		m[id] = true
	}
	return &StaticAccounts{paid: m}
}

func (a *StaticAccounts) IsPaid(_ context.Context, creatorID string) (bool, error) {
	return a.paid[creatorID], nil
}
