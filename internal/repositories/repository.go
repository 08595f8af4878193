package repositories

import "context"

// Repository aggregates all repository interfaces
type Repository interface {
	// Quiz domain
	Quiz() QuizRepository
	Slot() SlotRepository
	Section() SectionRepository
	Override() OverrideRepository
	Question() QuestionRepository

	// Attempt domain
	Attempt() AttemptRepository
	Usage() UsageRepository
	Regrade() RegradeRepository

	// User domain (read-only for the quiz service)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
