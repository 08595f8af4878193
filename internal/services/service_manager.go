package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/events"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/rules"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"gorm.io/gorm"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	// Service-specific configurations
	Attempt   ServiceConfig
	Structure ServiceConfig
	Regrade   ServiceConfig
	Override  ServiceConfig
	Report    ServiceConfig

	// Global settings
	DefaultTimeout time.Duration

	// ExpirySweepBatch caps how many attempts one expiry pass touches.
	ExpirySweepBatch int
}

type ServiceConfig struct {
	Enabled bool
}

// serviceManager implements ServiceManager
type serviceManager struct {
	// Dependencies
	db            *gorm.DB
	repo          repositories.Repository
	logger        *slog.Logger
	validator     *validator.Validator
	publisher     events.EventPublisher
	verifications rules.VerificationStore
	config        ServiceManagerConfig

	// Service instances
	engine           QuestionEngine
	attemptService   AttemptService
	structureService StructureService
	regradeService   RegradeService
	overrideService  OverrideService
	reportService    ReportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a service manager with all dependencies
func NewServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	verifications rules.VerificationStore,
	config ServiceManagerConfig,
) ServiceManager {
	return &serviceManager{
		db:            db,
		repo:          repo,
		logger:        logger,
		validator:     v,
		publisher:     publisher,
		verifications: verifications,
		config:        config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	verifications rules.VerificationStore,
) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,

		Attempt:   ServiceConfig{Enabled: true},
		Structure: ServiceConfig{Enabled: true},
		Regrade:   ServiceConfig{Enabled: true},
		Override:  ServiceConfig{Enabled: true},
		Report:    ServiceConfig{Enabled: true},

		DefaultTimeout:   30 * time.Second,
		ExpirySweepBatch: 100,
	}

	return NewServiceManager(db, repo, logger, v, publisher, verifications, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.engine = NewQuestionEngine(sm.repo, sm.logger)

	if sm.config.Attempt.Enabled {
		sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.engine, sm.publisher, sm.verifications)
		sm.logger.Info("Attempt service initialized")
	}

	if sm.config.Structure.Enabled {
		sm.structureService = NewStructureService(sm.repo, sm.db, sm.logger, sm.validator)
		sm.logger.Info("Structure service initialized")
	}

	if sm.config.Regrade.Enabled {
		sm.regradeService = NewRegradeService(sm.repo, sm.db, sm.logger, sm.validator, sm.engine, sm.publisher)
		sm.logger.Info("Regrade service initialized")
	}

	if sm.config.Override.Enabled {
		sm.overrideService = NewOverrideService(sm.repo, sm.db, sm.logger, sm.validator)
		sm.logger.Info("Override service initialized")
	}

	if sm.config.Report.Enabled {
		sm.reportService = NewReportService(sm.repo, sm.logger)
		sm.logger.Info("Report service initialized")
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.attemptService == nil {
		panic("attempt service not enabled")
	}
	return sm.attemptService
}

func (sm *serviceManager) Structure() StructureService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.structureService == nil {
		panic("structure service not enabled")
	}
	return sm.structureService
}

func (sm *serviceManager) Regrade() RegradeService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.regradeService == nil {
		panic("regrade service not enabled")
	}
	return sm.regradeService
}

func (sm *serviceManager) Override() OverrideService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.overrideService == nil {
		panic("override service not enabled")
	}
	return sm.overrideService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.reportService == nil {
		panic("report service not enabled")
	}
	return sm.reportService
}

// ===== HEALTH AND LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return ErrServiceUnavailable
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if manager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := manager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("repository health check failed: %w", err)
		}
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if err := sm.publisher.Close(); err != nil {
		sm.logger.Error("Failed to close event publisher", "error", err)
	}

	if manager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := manager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// ===== UTILITY METHODS =====

func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.initialized
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}

// ===== FACTORY FUNCTIONS =====

// CreateProductionServiceManager creates a service manager configured for production
func CreateProductionServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	verifications rules.VerificationStore,
) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,

		Attempt:   ServiceConfig{Enabled: true},
		Structure: ServiceConfig{Enabled: true},
		Regrade:   ServiceConfig{Enabled: true},
		Override:  ServiceConfig{Enabled: true},
		Report:    ServiceConfig{Enabled: true},

		DefaultTimeout:   60 * time.Second,
		ExpirySweepBatch: 500,
	}

	return NewServiceManager(db, repo, logger, v, publisher, verifications, config)
}

// CreateDevelopmentServiceManager creates a service manager configured for development
func CreateDevelopmentServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	verifications rules.VerificationStore,
) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: true,
		LogLevel:           slog.LevelDebug,

		Attempt:   ServiceConfig{Enabled: true},
		Structure: ServiceConfig{Enabled: true},
		Regrade:   ServiceConfig{Enabled: true},
		Override:  ServiceConfig{Enabled: true},
		Report:    ServiceConfig{Enabled: true},

		DefaultTimeout:   10 * time.Second,
		ExpirySweepBatch: 20,
	}

	return NewServiceManager(db, repo, logger, v, publisher, verifications, config)
}
