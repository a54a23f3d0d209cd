package settings

import (
	"context"
	"fmt"
)

// Settings holds the runtime-tunable chunking parameters. A single row
// (id = 1) is seeded by migrations; uploads and reprocessing pick up changes
// without a restart.
type Settings struct {
	ID           int `json:"-"`
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

func (s *Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", s.ChunkOverlap)
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}
