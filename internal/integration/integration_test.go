package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"lingo-challenge-service/internal/app"
	"lingo-challenge-service/internal/domain"
	"lingo-challenge-service/internal/infra/memory"
	infrapg "lingo-challenge-service/internal/infra/postgres"
	pgmigrations "lingo-challenge-service/internal/infra/postgres/migrations"
	infraredis "lingo-challenge-service/internal/infra/redis"
)

func TestChallengeFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := infrapg.NewDB(pgURL)
	defer db.Close()
	migrateAndSeed(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	log := logrus.New()
	challengeRepo := infrapg.NewChallengeRepository(db)
	quotaRepo := infrapg.NewQuotaRepository(db)
	ratingRepo := infrapg.NewRatingRepository(db)
	badgeRepo := infrapg.NewBadgeRepository(db)
	loader := infrapg.NewCurriculumLoader(pool)
	leaderboard := infraredis.NewRatingLeaderboard(redisClient)

	catalog := memory.NewStaticCatalog(domain.Language{Code: "es", Name: "Spanish"})
	generator := app.NewQuestionGenerator(loader, loader, catalog, log)
	quotas := app.NewQuotaManager(quotaRepo, memory.NewStaticAccounts(), app.DefaultQuotaConfig())
	scoring := app.NewScoringEngine(app.DefaultScoringConfig(), log)
	rating := app.NewRatingService(ratingRepo, leaderboard, app.DefaultRatingConfig(), log)
	badges := app.NewBadgeService(badgeRepo, ratingRepo, challengeRepo, log)
	service := app.NewChallengeService(challengeRepo, generator, quotas, scoring, rating, badges, catalog, log)

	challenge, err := service.CreateChallenge(ctx, "creator-1", "es", "animals", "easy", 4, 60)
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if len(challenge.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(challenge.Questions))
	}

	answers := make([]int, 0, len(challenge.Questions))
	for _, q := range challenge.Questions {
		if q.CorrectIndex == nil {
			t.Fatalf("question %s has no answer key", q.ID)
		}
		answers = append(answers, *q.CorrectIndex)
	}

	alice, bob := "alice", "bob"
	attemptA, err := service.StartAttempt(ctx, challenge.Code, "Alice", "Lisbon", &alice)
	if err != nil {
		t.Fatalf("start alice: %v", err)
	}
	attemptB, err := service.StartAttempt(ctx, challenge.Code, "Bob", "Porto", &bob)
	if err != nil {
		t.Fatalf("start bob: %v", err)
	}

	result, awarded, err := service.SubmitAttempt(ctx, attemptA.ID, answers, 30)
	if err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if result.Percentage != 100.0 {
		t.Fatalf("expected perfect score, got %+v", result)
	}
	if len(awarded) != 1 || awarded[0].Name != "First Steps" {
		t.Fatalf("expected First Steps badge, got %v", awarded)
	}
	if _, _, err := service.SubmitAttempt(ctx, attemptB.ID, answers[:2], 50); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	// completion is one-way
	if _, _, err := service.SubmitAttempt(ctx, attemptA.ID, answers, 10); !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted, got %v", err)
	}

	deltaW, deltaL, err := service.FinalizeMatch(ctx, attemptA.ID, attemptB.ID, false)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if deltaW.Change != 16 || deltaL.Change != -16 {
		t.Fatalf("unexpected deltas: %+v / %+v", deltaW, deltaL)
	}

	ratingA, ok, err := ratingRepo.Get(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("load rating: ok=%v err=%v", ok, err)
	}
	if ratingA.CurrentRating != 1016 || ratingA.Wins != 1 {
		t.Fatalf("unexpected rating: %+v", ratingA)
	}
	history, err := ratingRepo.History(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].RatingAfter != 1016 {
		t.Fatalf("unexpected history: %+v", history)
	}

	top, err := leaderboard.Top(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard top: %v", err)
	}
	if len(top) != 2 || top[0].ParticipantID != "alice" || top[0].Rating != 1016 {
		t.Fatalf("unexpected redis leaderboard: %+v", top)
	}

	points, err := badges.LifetimePoints(ctx, "alice")
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	if points != 10 {
		t.Fatalf("expected 10 badge points, got %d", points)
	}

	board, err := service.Leaderboard(ctx, challenge.Code, 10)
	if err != nil {
		t.Fatalf("challenge leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].ParticipantName != "Alice" || board[0].Rank != 1 {
		t.Fatalf("unexpected challenge leaderboard: %+v", board)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for i := 0; i < 8; i++ {
		_, err := db.ExecContext(ctx,
			`INSERT INTO curriculum_items (id, language, category, display_value, translation) VALUES (?, 'es', 'animals', ?, ?)`,
			fmt.Sprintf("es-w%d", i), fmt.Sprintf("palabra%d", i), fmt.Sprintf("word%d", i))
		if err != nil {
			t.Fatalf("seed curriculum: %v", err)
		}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO badges (name, criteria_type, criteria_value, point_bonus, active) VALUES ('First Steps', ?, 1, 10, TRUE)`,
		domain.CriteriaChallengesCompleted)
	if err != nil {
		t.Fatalf("seed badges: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "lingo", "POSTGRES_PASSWORD": "lingopass", "POSTGRES_DB": "lingodb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://lingo:lingopass@%s:%s/lingodb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
