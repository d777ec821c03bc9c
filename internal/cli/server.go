package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lingo-challenge-service/internal/app"
	"lingo-challenge-service/internal/config"
	"lingo-challenge-service/internal/domain"
	"lingo-challenge-service/internal/infra/memory"
	"lingo-challenge-service/internal/infra/postgres"
	redisinfra "lingo-challenge-service/internal/infra/redis"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the challenge service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Repositories: Postgres when configured, in-memory otherwise.
	var (
		challengeRepo app.ChallengeRepository
		quotaRepo     app.QuotaRepository
		ratingRepo    app.RatingRepository
		badgeRepo     app.BadgeRepository
		curriculum    app.CurriculumPool
		grammar       app.GrammarSource
	)
	if pool != nil {
		db := postgres.NewDB(cfg.Postgres.URL)
		challengeRepo = postgres.NewChallengeRepository(db)
		quotaRepo = postgres.NewQuotaRepository(db)
		ratingRepo = postgres.NewRatingRepository(db)
		badgeRepo = postgres.NewBadgeRepository(db)
		loader := postgres.NewCurriculumLoader(pool)
		curriculum = loader
		grammar = loader
	} else {
		challengeRepo = memory.NewChallengeStore()
		quotaRepo = memory.NewQuotaStore()
		ratingRepo = memory.NewRatingStore()
		badgeRepo = memory.NewBadgeStore(sampleBadges())
		staticPool := memory.NewStaticCurriculum()
		staticGrammar := memory.NewStaticGrammar()
		seedSampleContent(staticPool, staticGrammar)
		curriculum = staticPool
		grammar = staticGrammar
	}

	challengeTTL := config.TTLDuration(cfg.Challenge.CacheTTL, 10*time.Minute)
	challengeRepo = memory.NewChallengeCache(challengeRepo, challengeTTL)

	var leaderboardCache app.LeaderboardCache
	if redisClient != nil {
		leaderboardCache = redisinfra.NewRatingLeaderboard(redisClient)
	}

	catalog := memory.NewStaticCatalog(
		domain.Language{Code: "es", Name: "Spanish"},
		domain.Language{Code: "fr", Name: "French"},
		domain.Language{Code: "ja", Name: "Japanese"},
	)
	// Plan lookups come from config until a billing backend exists.
	accounts := memory.NewStaticAccounts(cfg.Quota.PaidCreatorIDs...)

	quotaCfg := app.DefaultQuotaConfig()
	if cfg.Quota.FreeDailyLimit > 0 {
		quotaCfg.FreeDailyLimit = cfg.Quota.FreeDailyLimit
	}
	ratingCfg := app.DefaultRatingConfig()
	if cfg.Rating.InitialRating > 0 {
		ratingCfg.InitialRating = cfg.Rating.InitialRating
	}
	if cfg.Rating.KFactorNew > 0 {
		ratingCfg.KFactorNew = cfg.Rating.KFactorNew
	}
	if cfg.Rating.KFactorEstablished > 0 {
		ratingCfg.KFactorEstablished = cfg.Rating.KFactorEstablished
	}
	if cfg.Rating.GamesThreshold > 0 {
		ratingCfg.GamesThreshold = cfg.Rating.GamesThreshold
	}
	if cfg.Rating.LeaderboardMinMatches > 0 {
		ratingCfg.LeaderboardMinMatches = cfg.Rating.LeaderboardMinMatches
	}

	generator := app.NewQuestionGenerator(curriculum, grammar, catalog, log)
	quotas := app.NewQuotaManager(quotaRepo, accounts, quotaCfg)
	scoring := app.NewScoringEngine(app.DefaultScoringConfig(), log)
	rating := app.NewRatingService(ratingRepo, leaderboardCache, ratingCfg, log)
	badges := app.NewBadgeService(badgeRepo, ratingRepo, challengeRepo, log)
	service := app.NewChallengeService(challengeRepo, generator, quotas, scoring, rating, badges, catalog, log)

	// Minimal operational surface: health plus read-only leaderboards.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/leaderboard/challenge", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		entries, err := service.Leaderboard(r.Context(), code, 10)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, entries)
	})
	mux.HandleFunc("/leaderboard/ratings", func(w http.ResponseWriter, r *http.Request) {
		ratings, err := rating.Leaderboard(r.Context(), r.URL.Query().Get("language"), 10)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, ratings)
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Infof("starting challenge service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sampleBadges seeds the demo badge catalog; in production the catalog
// lives in Postgres.
func sampleBadges() []domain.Badge {
	return []domain.Badge{
		{ID: 1, Name: "First Steps", Description: "Complete your first challenge", Icon: "footprints", Rarity: "common", Category: "progress", CriteriaType: domain.CriteriaChallengesCompleted, CriteriaValue: 1, PointBonus: 10, Active: true},
		{ID: 2, Name: "Perfectionist", Description: "Score 100% on a challenge", Icon: "star", Rarity: "rare", Category: "skill", CriteriaType: domain.CriteriaPerfectChallenges, CriteriaValue: 1, PointBonus: 50, Active: true},
		{ID: 3, Name: "On Fire", Description: "Win five matches in a row", Icon: "flame", Rarity: "epic", Category: "competitive", CriteriaType: domain.CriteriaBestWinStreak, CriteriaValue: 5, PointBonus: 100, Active: true},
	}
}

// seedSampleContent provides a minimal curriculum so demo mode can
// generate questions without Postgres.
func seedSampleContent(pool *memory.StaticCurriculum, grammar *memory.StaticGrammar) {
	pool.Seed("es", "animals", []domain.CurriculumItem{
		{ID: "es-dog", DisplayValue: "perro", Translation: "dog"},
		{ID: "es-cat", DisplayValue: "gato", Translation: "cat"},
		{ID: "es-bird", DisplayValue: "pájaro", Translation: "bird"},
		{ID: "es-fish", DisplayValue: "pez", Translation: "fish"},
		{ID: "es-horse", DisplayValue: "caballo", Translation: "horse"},
	})
	grammar.SeedExercises("es", "easy", []domain.GrammarExercise{
		{ID: "es-g1", Type: "multiple_choice", Prompt: "___ gato es negro.", CorrectAnswer: "El", Distractors: []string{"La", "Los", "Las"}},
	})
	grammar.SeedRules("es", "easy", []domain.GrammarRule{
		{ID: "es-r1", Title: "Masculine nouns take el", Example: "el perro"},
	})
}
