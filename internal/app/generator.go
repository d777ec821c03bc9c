package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"lingo-challenge-service/internal/domain"
)

const (
	// minPoolSize is the smallest curriculum pool that can yield a
	// 4-option question (one subject plus three distractors).
	minPoolSize = 4

	distractorsPerQuestion = 3

	// GrammarCategory triggers the tiered exercise fallback.
	GrammarCategory = "grammar"
)

// CurriculumPool is the external curriculum corpus contract: count and
// random-sample over the active pool for a (language, category) pair.
type CurriculumPool interface {
	Count(ctx context.Context, language, category string) (int, error)
	Sample(ctx context.Context, language, category string, n int, excludeIDs []string) ([]domain.CurriculumItem, error)
}

// GrammarSource supplies the grammar fallback tiers: a specialized
// multiple-choice exercise pool, any exercise for the topic, and raw rules
// for synthesizing questions.
type GrammarSource interface {
	MultipleChoiceExercises(ctx context.Context, language, difficulty string) ([]domain.GrammarExercise, error)
	ExercisesForTopic(ctx context.Context, language, difficulty string) ([]domain.GrammarExercise, error)
	Rules(ctx context.Context, language, difficulty string) ([]domain.GrammarRule, error)
}

// LanguageCatalog resolves language codes to display data. It is a required
// dependency; there is no fallback registry chain.
type LanguageCatalog interface {
	Language(code string) (domain.Language, bool)
}

// QuestionGenerator draws randomized multiple-choice questions from the
// curriculum pool.
type QuestionGenerator struct {
	pool    CurriculumPool
	grammar GrammarSource
	catalog LanguageCatalog
	log     *logrus.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionGenerator(pool CurriculumPool, grammar GrammarSource, catalog LanguageCatalog, log *logrus.Logger) *QuestionGenerator {
	return NewQuestionGeneratorWithSeed(pool, grammar, catalog, log, time.Now().UnixNano())
}

// NewQuestionGeneratorWithSeed fixes the random source for deterministic tests.
func NewQuestionGeneratorWithSeed(pool CurriculumPool, grammar GrammarSource, catalog LanguageCatalog, log *logrus.Logger, seed int64) *QuestionGenerator {
	return &QuestionGenerator{
		pool:    pool,
		grammar: grammar,
		catalog: catalog,
		log:     log,
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

// Generate returns up to count questions, or an empty slice when the pool is
// too small; the caller surfaces "not enough content". Distractors are
// excluded by item ID only, so two pool items sharing a printable value can
// surface duplicate-looking options.
func (g *QuestionGenerator) Generate(ctx context.Context, language, category, difficulty string, count int) ([]domain.Question, error) {
	if count <= 0 {
		return nil, nil
	}
	lang, ok := g.catalog.Language(language)
	if !ok {
		return nil, domain.ErrUnknownLanguage
	}

	if category == GrammarCategory {
		return g.generateGrammar(ctx, lang, difficulty, count)
	}

	size, err := g.pool.Count(ctx, language, category)
	if err != nil {
		return nil, fmt.Errorf("count curriculum pool: %w", err)
	}
	if size < minPoolSize {
		g.log.WithFields(logrus.Fields{
			"language": language,
			"category": category,
			"pool":     size,
		}).Info("curriculum pool too small for generation")
		return []domain.Question{}, nil
	}

	if count > size {
		count = size
	}
	subjects, err := g.pool.Sample(ctx, language, category, count, nil)
	if err != nil {
		return nil, fmt.Errorf("sample subjects: %w", err)
	}

	questions := make([]domain.Question, 0, len(subjects))
	for _, subject := range subjects {
		others, err := g.pool.Sample(ctx, language, category, distractorsPerQuestion, []string{subject.ID})
		if err != nil {
			return nil, fmt.Errorf("sample distractors: %w", err)
		}
		if len(others) < distractorsPerQuestion {
			continue
		}
		options := []string{subject.Translation}
		for _, o := range others {
			options = append(options, o.Translation)
		}
		shuffled, correctIndex := g.shuffleOptions(options)

		idx := correctIndex
		questions = append(questions, domain.Question{
			ID:           "q:" + subject.ID,
			Prompt:       fmt.Sprintf("What does the %s word \"%s\" mean?", lang.Name, subject.DisplayValue),
			Options:      shuffled,
			CorrectIndex: &idx,
			MediaURL:     subject.MediaURL,
		})
	}
	return questions, nil
}

// generateGrammar falls back tier by tier: specialized multiple-choice
// exercises, then any exercise type for the topic, then synthetic questions
// built from rule titles as distractors.
func (g *QuestionGenerator) generateGrammar(ctx context.Context, lang domain.Language, difficulty string, count int) ([]domain.Question, error) {
	exercises, err := g.grammar.MultipleChoiceExercises(ctx, lang.Code, difficulty)
	if err != nil {
		return nil, fmt.Errorf("load grammar exercises: %w", err)
	}
	if len(exercises) < count {
		exercises, err = g.grammar.ExercisesForTopic(ctx, lang.Code, difficulty)
		if err != nil {
			return nil, fmt.Errorf("load topic exercises: %w", err)
		}
	}
	if len(exercises) >= count {
		return g.questionsFromExercises(exercises, count), nil
	}

	rules, err := g.grammar.Rules(ctx, lang.Code, difficulty)
	if err != nil {
		return nil, fmt.Errorf("load grammar rules: %w", err)
	}
	if len(rules) < minPoolSize {
		g.log.WithFields(logrus.Fields{
			"language":   lang.Code,
			"difficulty": difficulty,
			"rules":      len(rules),
		}).Info("grammar pools exhausted, not enough content")
		return []domain.Question{}, nil
	}
	return g.questionsFromRules(rules, count), nil
}

func (g *QuestionGenerator) questionsFromExercises(exercises []domain.GrammarExercise, count int) []domain.Question {
	g.mu.Lock()
	g.rnd.Shuffle(len(exercises), func(i, j int) { exercises[i], exercises[j] = exercises[j], exercises[i] })
	g.mu.Unlock()

	questions := make([]domain.Question, 0, count)
	for _, ex := range exercises {
		if len(questions) == count {
			break
		}
		if len(ex.Distractors) < distractorsPerQuestion {
			continue
		}
		options := append([]string{ex.CorrectAnswer}, ex.Distractors[:distractorsPerQuestion]...)
		shuffled, correctIndex := g.shuffleOptions(options)
		idx := correctIndex
		questions = append(questions, domain.Question{
			ID:           "gx:" + ex.ID,
			Prompt:       ex.Prompt,
			Options:      shuffled,
			CorrectIndex: &idx,
		})
	}
	return questions
}

func (g *QuestionGenerator) questionsFromRules(rules []domain.GrammarRule, count int) []domain.Question {
	g.mu.Lock()
	g.rnd.Shuffle(len(rules), func(i, j int) { rules[i], rules[j] = rules[j], rules[i] })
	g.mu.Unlock()

	if count > len(rules) {
		count = len(rules)
	}
	questions := make([]domain.Question, 0, count)
	for i := 0; i < count; i++ {
		subject := rules[i]
		options := []string{subject.Title}
		for j := 1; len(options) < distractorsPerQuestion+1; j++ {
			options = append(options, rules[(i+j)%len(rules)].Title)
		}
		shuffled, correctIndex := g.shuffleOptions(options)
		idx := correctIndex
		questions = append(questions, domain.Question{
			ID:           "gr:" + subject.ID,
			Prompt:       fmt.Sprintf("Which rule does this example follow: \"%s\"?", subject.Example),
			Options:      shuffled,
			CorrectIndex: &idx,
		})
	}
	return questions
}

// shuffleOptions shuffles the options (the correct value is at index 0 on
// input) and returns the post-shuffle position of the correct value. The
// position is tracked through the swap so duplicate display texts cannot
// mislabel the answer.
func (g *QuestionGenerator) shuffleOptions(options []string) ([]string, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	correct := 0
	g.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
		switch correct {
		case i:
			correct = j
		case j:
			correct = i
		}
	})
	return options, correct
}

// StripAnswers removes the answer key from a decoded question payload before
// it is sent to participants. It accepts arbitrary input: nil or non-slice
// values yield an empty slice, non-map entries are silently skipped, and it
// never panics.
func StripAnswers(raw any) []map[string]any {
	stripped := make([]map[string]any, 0)

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		return stripped
	}

	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || m == nil {
			continue
		}
		clean := make(map[string]any, len(m))
		for k, v := range m {
			if k == "correct_index" {
				continue
			}
			clean[k] = v
		}
		stripped = append(stripped, clean)
	}
	return stripped
}
