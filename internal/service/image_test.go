package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kitbuilder587/imagen-bot/internal/domain"
	"github.com/kitbuilder587/imagen-bot/internal/inflight"
	"github.com/kitbuilder587/imagen-bot/internal/metrics"
	"github.com/kitbuilder587/imagen-bot/internal/photo"
	"github.com/kitbuilder587/imagen-bot/internal/photo/mock"
	"github.com/kitbuilder587/imagen-bot/internal/repository"
)

func testImage() *photo.Image {
	return &photo.Image{
		Data:      []byte{0xff, 0xd8, 0xff},
		Format:    "jpeg",
		Width:     1080,
		Height:    1080,
		SourceURL: "https://images.unsplash.com/photo-1?w=1080",
	}
}

func TestImageService_Generate(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		client     *mock.Client
		wantErr    error
		wantStatus domain.GenerationStatus
		wantKind   string
		wantStored bool
	}{
		{
			name:       "success",
			prompt:     "  red fox ",
			client:     mock.New().WithImage(testImage()),
			wantStatus: domain.GenerationSucceeded,
			wantStored: true,
		},
		{
			name:       "api error",
			prompt:     "red fox",
			client:     mock.New().WithError(photo.APIError("a, b")),
			wantErr:    photo.ErrAPI,
			wantStatus: domain.GenerationFailed,
			wantKind:   "api_error",
			wantStored: true,
		},
		{
			name:       "network error",
			prompt:     "red fox",
			client:     mock.New().WithError(photo.NetworkError(errors.New("connection reset"))),
			wantErr:    photo.ErrNetwork,
			wantStatus: domain.GenerationFailed,
			wantKind:   "network_error",
			wantStored: true,
		},
		{
			name:       "invalid response",
			prompt:     "red fox",
			client:     mock.New(),
			wantErr:    photo.ErrInvalidResponse,
			wantStatus: domain.GenerationFailed,
			wantKind:   "invalid_response",
			wantStored: true,
		},
		{
			name:    "empty prompt",
			prompt:  "   ",
			client:  mock.New().WithImage(testImage()),
			wantErr: domain.ErrEmptyPrompt,
		},
		{
			name:    "too long prompt",
			prompt:  strings.Repeat("x", domain.MaxPromptLength+1),
			client:  mock.New().WithImage(testImage()),
			wantErr: domain.ErrPromptTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := repository.NewMockGenerationRepository()
			svc := NewImageService(ImageServiceDeps{
				Photo:   tt.client,
				History: history,
				Metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
				Logger:  zap.NewNop(),
			})

			img, err := svc.Generate(context.Background(), 42, tt.prompt)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Generate() error = %v, want %v", err, tt.wantErr)
				}
				if img != nil {
					t.Error("Generate() returned image with error")
				}
			} else if err != nil {
				t.Fatalf("Generate() unexpected error = %v", err)
			}

			gens, _ := history.ListByUser(context.Background(), 42, 10)
			if !tt.wantStored {
				if len(gens) != 0 {
					t.Errorf("stored %d generations, want 0", len(gens))
				}
				if tt.client.Calls() != 0 {
					t.Error("photo client called for invalid prompt")
				}
				return
			}

			if len(gens) != 1 {
				t.Fatalf("stored %d generations, want 1", len(gens))
			}
			g := gens[0]
			if g.Status != tt.wantStatus || g.ErrorKind != tt.wantKind {
				t.Errorf("stored status=%s kind=%q, want %s %q", g.Status, g.ErrorKind, tt.wantStatus, tt.wantKind)
			}
			if g.Prompt != "red fox" {
				t.Errorf("stored prompt = %q, want trimmed", g.Prompt)
			}
			if tt.client.LastPrompt != "red fox" {
				t.Errorf("client prompt = %q, want trimmed", tt.client.LastPrompt)
			}
		})
	}
}

func TestImageService_Generate_OneInFlightPerUser(t *testing.T) {
	gate := make(chan struct{})
	client := mock.New().WithImage(testImage()).WithGate(gate)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	guard := inflight.New()

	svc := NewImageService(ImageServiceDeps{
		Photo:   client,
		Guard:   guard,
		Metrics: m,
		Logger:  zap.NewNop(),
	})

	first := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), 1, "first")
		first <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !guard.InFlight(1) {
		if time.Now().After(deadline) {
			t.Fatal("first generation never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := svc.Generate(context.Background(), 1, "second"); !errors.Is(err, domain.ErrGenerationInProgress) {
		t.Errorf("second Generate() error = %v, want ErrGenerationInProgress", err)
	}

	// другой юзер не блокируется
	otherDone := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), 2, "other")
		otherDone <- err
	}()

	close(gate)

	if err := <-first; err != nil {
		t.Errorf("first Generate() error = %v", err)
	}
	if err := <-otherDone; err != nil {
		t.Errorf("other user Generate() error = %v", err)
	}
	if got := testutil.ToFloat64(m.BusyRejectionsTotal); got != 1 {
		t.Errorf("busy rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GenerationsInFlight); got != 0 {
		t.Errorf("in-flight gauge = %v after all finished, want 0", got)
	}
	if guard.Count() != 0 {
		t.Errorf("guard still holds %d users", guard.Count())
	}
}

func TestImageService_Busy(t *testing.T) {
	gate := make(chan struct{})
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	guard := inflight.New()

	svc := NewImageService(ImageServiceDeps{
		Photo:   mock.New().WithImage(testImage()).WithGate(gate),
		Guard:   guard,
		Metrics: m,
		Logger:  zap.NewNop(),
	})

	if svc.Busy(1) {
		t.Fatal("Busy() = true for idle user")
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), 1, "fox")
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !guard.InFlight(1) {
		if time.Now().After(deadline) {
			t.Fatal("generation never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := testutil.ToFloat64(m.GenerationsInFlight); got != 1 {
		t.Errorf("in-flight gauge = %v, want 1", got)
	}
	if !svc.Busy(1) {
		t.Error("Busy() = false while generating")
	}
	if svc.Busy(2) {
		t.Error("Busy() = true for another user")
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if svc.Busy(1) {
		t.Error("Busy() = true after generation finished")
	}
	if got := testutil.ToFloat64(m.BusyRejectionsTotal); got != 1 {
		t.Errorf("busy rejections = %v, want 1", got)
	}
}

func TestImageService_Generate_KeepsInnerSpacing(t *testing.T) {
	client := mock.New().WithImage(testImage())
	svc := NewImageService(ImageServiceDeps{Photo: client, Logger: zap.NewNop()})

	if _, err := svc.Generate(context.Background(), 1, "  red  fox\t"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if client.LastPrompt != "red  fox" {
		t.Errorf("client prompt = %q, want %q", client.LastPrompt, "red  fox")
	}
}

func TestImageService_Generate_Timeout(t *testing.T) {
	client := mock.New().WithImage(testImage()).WithDelay(time.Second)
	history := repository.NewMockGenerationRepository()

	svc := NewImageService(ImageServiceDeps{
		Photo:   client,
		History: history,
		Logger:  zap.NewNop(),
		Config:  ImageConfig{Timeout: 30 * time.Millisecond},
	})

	_, err := svc.Generate(context.Background(), 1, "slow")
	if !errors.Is(err, photo.ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want network error wrapping deadline", err)
	}

	gens, _ := history.ListByUser(context.Background(), 1, 10)
	if len(gens) != 1 {
		t.Fatalf("history written %d times after timeout, want 1", len(gens))
	}
}

func TestImageService_Generate_HistoryFailureKeepsResult(t *testing.T) {
	history := repository.NewMockGenerationRepository()
	history.CreateErr = errors.New("db down")
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	svc := NewImageService(ImageServiceDeps{
		Photo:   mock.New().WithImage(testImage()),
		History: history,
		Metrics: m,
		Logger:  zap.NewNop(),
	})

	img, err := svc.Generate(context.Background(), 1, "fox")
	if err != nil || img == nil {
		t.Fatalf("Generate() = %v, %v; want image", img, err)
	}
	if got := testutil.ToFloat64(m.HistoryWriteErrors); got != 1 {
		t.Errorf("history write errors = %v, want 1", got)
	}
}

func TestImageService_Generate_ConcurrentUsers(t *testing.T) {
	client := mock.New().WithImage(testImage()).WithDelay(10 * time.Millisecond)
	svc := NewImageService(ImageServiceDeps{Photo: client, Logger: zap.NewNop()})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := int64(1); i <= 10; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), uid, "fox")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Generate() error = %v", err)
		}
	}
	if client.Calls() != 10 {
		t.Errorf("client calls = %d, want 10", client.Calls())
	}
}

func TestImageService_History(t *testing.T) {
	history := repository.NewMockGenerationRepository()
	svc := NewImageService(ImageServiceDeps{
		Photo:   mock.New().WithImage(testImage()),
		History: history,
		Logger:  zap.NewNop(),
		Config:  ImageConfig{HistoryLimit: 2},
	})

	for _, p := range []string{"one", "two", "three"} {
		if _, err := svc.Generate(context.Background(), 5, p); err != nil {
			t.Fatalf("Generate(%q) error = %v", p, err)
		}
	}

	gens, total, err := svc.History(context.Background(), 5, 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(gens) != 2 || gens[0].Prompt != "three" {
		t.Errorf("History() = %+v, want 2 newest", gens)
	}
	if total != 3 {
		t.Errorf("History() total = %d, want 3", total)
	}
}

func TestImageService_History_NoRepository(t *testing.T) {
	svc := NewImageService(ImageServiceDeps{Photo: mock.New()})

	gens, total, err := svc.History(context.Background(), 1, 5)
	if err != nil || gens != nil || total != 0 {
		t.Errorf("History() = %v, %d, %v; want nil, 0, nil", gens, total, err)
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{photo.APIError("x"), "api_error"},
		{photo.InvalidResponse(nil), "invalid_response"},
		{photo.NetworkError(errors.New("x")), "network_error"},
		{context.DeadlineExceeded, "network_error"},
		{errors.New("other"), "unknown"},
	}

	for _, tt := range tests {
		if got := outcomeOf(tt.err); got != tt.want {
			t.Errorf("outcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
