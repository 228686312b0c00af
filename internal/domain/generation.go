package domain

import "time"

type GenerationStatus string

const (
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
)

func (s GenerationStatus) IsValid() bool {
	switch s {
	case GenerationSucceeded, GenerationFailed:
		return true
	default:
		return false
	}
}

// Generation is one finished prompt -> image attempt, kept for /history.
type Generation struct {
	ID           int64
	UserID       int64
	Prompt       string
	Status       GenerationStatus
	ErrorKind    string
	ErrorMessage string
	ImageURL     string
	Width        int
	Height       int
	Duration     time.Duration
	CreatedAt    time.Time
}

func (g *Generation) Validate() error {
	if err := ValidatePrompt(g.Prompt); err != nil {
		return err
	}
	if !g.Status.IsValid() {
		return ErrInvalidGenerationStatus
	}
	return nil
}

func (g *Generation) Succeeded() bool {
	return g.Status == GenerationSucceeded
}
