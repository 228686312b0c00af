package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
	"github.com/kitbuilder587/imagen-bot/internal/photo"
	"github.com/kitbuilder587/imagen-bot/internal/photo/mock"
	pgRepo "github.com/kitbuilder587/imagen-bot/internal/repository/postgres"
	"github.com/kitbuilder587/imagen-bot/internal/service"
)

var testDB *pgRepo.DB

func TestMain(m *testing.M) {
	if os.Getenv("SHORT_TESTS") == "1" {
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	testDB, err = pgRepo.New(ctx, connStr)
	if err != nil {
		panic(err)
	}

	// дважды - миграция должна быть идемпотентной
	for i := 0; i < 2; i++ {
		if err := testDB.Migrate(ctx); err != nil {
			panic(err)
		}
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

func TestUserRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	repo := pgRepo.NewUserRepo(testDB)

	user, err := repo.GetOrCreate(ctx, 12345, "testuser")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if user.ID != 12345 || user.TelegramID != 12345 {
		t.Errorf("user.ID = %v, want %v", user.ID, 12345)
	}

	user2, err := repo.GetOrCreate(ctx, 12345, "updatedname")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if user2.Username != "updatedname" {
		t.Errorf("user.Username = %v, want %v", user2.Username, "updatedname")
	}
	if !user2.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt changed on upsert: %v -> %v", user.CreatedAt, user2.CreatedAt)
	}

	found, err := repo.GetByID(ctx, 12345)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.ID != 12345 {
		t.Errorf("GetByID() user.ID = %v, want %v", found.ID, 12345)
	}

	_, err = repo.GetByID(ctx, 99999)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
}

func TestGenerationRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	users := pgRepo.NewUserRepo(testDB)
	repo := pgRepo.NewGenerationRepo(testDB)

	user, err := users.GetOrCreate(ctx, 22222, "genuser")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	gens := []*domain.Generation{
		{UserID: user.ID, Prompt: "one", Status: domain.GenerationSucceeded, ImageURL: "https://images.unsplash.com/1", Width: 1080, Height: 1080, Duration: 1200 * time.Millisecond},
		{UserID: user.ID, Prompt: "two", Status: domain.GenerationFailed, ErrorKind: "api_error", ErrorMessage: "a, b"},
		{UserID: user.ID, Prompt: "three", Status: domain.GenerationSucceeded, ImageURL: "https://images.unsplash.com/3"},
	}
	for _, g := range gens {
		if err := repo.Create(ctx, g); err != nil {
			t.Fatalf("Create(%q) error = %v", g.Prompt, err)
		}
		if g.ID == 0 || g.CreatedAt.IsZero() {
			t.Errorf("Create(%q) did not fill ID/CreatedAt", g.Prompt)
		}
	}

	list, err := repo.ListByUser(ctx, user.ID, 2)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListByUser() len = %d, want 2", len(list))
	}
	if list[0].Prompt != "three" || list[1].Prompt != "two" {
		t.Errorf("ListByUser() order = %q, %q; want three, two", list[0].Prompt, list[1].Prompt)
	}
	if list[1].ErrorKind != "api_error" || list[1].ErrorMessage != "a, b" {
		t.Errorf("failed generation = %+v", list[1])
	}

	all, err := repo.ListByUser(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if all[2].Duration != 1200*time.Millisecond || all[2].Width != 1080 {
		t.Errorf("first generation = %+v", all[2])
	}

	count, err := repo.CountByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("CountByUser() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountByUser() = %d, want 3", count)
	}

	// без пользователя FK не даст вставить
	err = repo.Create(ctx, &domain.Generation{UserID: 777, Prompt: "orphan", Status: domain.GenerationFailed})
	if err == nil {
		t.Error("Create() for unknown user should fail")
	}
}

func TestImageService_PersistsHistory_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	users := pgRepo.NewUserRepo(testDB)

	user, err := users.GetOrCreate(ctx, 33333, "svcuser")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	client := mock.New().WithImage(&photo.Image{
		Data:      []byte{1, 2, 3},
		Format:    "jpeg",
		Width:     640,
		Height:    480,
		SourceURL: "https://images.unsplash.com/photo-9",
	})

	svc := service.NewImageService(service.ImageServiceDeps{
		Photo:   client,
		History: pgRepo.NewGenerationRepo(testDB),
		Logger:  zap.NewNop(),
	})

	if _, err := svc.Generate(ctx, user.ID, "  red fox "); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	client.WithError(photo.APIError("Rate Limit Exceeded"))
	if _, err := svc.Generate(ctx, user.ID, "blue whale"); !errors.Is(err, photo.ErrAPI) {
		t.Fatalf("Generate() error = %v, want api error", err)
	}

	history, total, err := svc.History(ctx, user.ID, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || total != 2 {
		t.Fatalf("History() len = %d total = %d, want 2, 2", len(history), total)
	}
	if history[0].Status != domain.GenerationFailed || history[0].ErrorMessage != "Rate Limit Exceeded" {
		t.Errorf("newest = %+v", history[0])
	}
	if history[1].Prompt != "red fox" || history[1].ImageURL != "https://images.unsplash.com/photo-9" {
		t.Errorf("oldest = %+v", history[1])
	}
}
