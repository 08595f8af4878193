package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"gorm.io/gorm"
)

type overrideService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewOverrideService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) OverrideService {
	return &overrideService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

func (s *overrideService) Create(ctx context.Context, quizID uint, req *OverrideCreateRequest, userID string) (*OverrideResponse, error) {
	s.logger.Info("Creating override",
		"quiz_id", quizID,
		"target_user", req.UserID,
		"user_id", userID)

	if errs := s.validator.ValidateOverride(req); len(errs) > 0 {
		return nil, errs
	}
	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return nil, err
	}

	if _, err := s.repo.Quiz().GetByID(ctx, nil, quizID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	if exists, err := s.repo.User().ExistsByID(ctx, req.UserID); err != nil {
		return nil, err
	} else if !exists {
		return nil, ErrUserNotFound
	}

	var override *models.UserOverride
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.Override().GetByQuizAndUser(ctx, tx, quizID, req.UserID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return err
		}
		if existing != nil {
			return ErrOverrideExists
		}

		// An override password must not duplicate one issued to a
		// different user, or the access log cannot tell them apart.
		if req.Password != nil && *req.Password != "" {
			others, err := s.repo.Override().GetExtraPasswords(ctx, tx, quizID, req.UserID)
			if err != nil {
				return err
			}
			for _, p := range others {
				if p == *req.Password {
					return NewValidationError("password", "already issued to another user", nil)
				}
			}
		}

		override = &models.UserOverride{
			QuizID:    quizID,
			UserID:    req.UserID,
			TimeOpen:  req.TimeOpen,
			TimeClose: req.TimeClose,
			TimeLimit: req.TimeLimit,
			Attempts:  req.Attempts,
			Password:  req.Password,
		}
		return s.repo.Override().Create(ctx, tx, override)
	})
	if err != nil {
		return nil, err
	}

	return toOverrideResponse(override), nil
}

func (s *overrideService) Update(ctx context.Context, quizID, overrideID uint, req *OverrideUpdateRequest, userID string) (*OverrideResponse, error) {
	s.logger.Info("Updating override",
		"quiz_id", quizID,
		"override_id", overrideID,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return nil, err
	}

	var override *models.UserOverride
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		override, err = s.loadOverride(ctx, tx, quizID, overrideID)
		if err != nil {
			return err
		}

		if req.TimeOpen != nil {
			override.TimeOpen = req.TimeOpen
		}
		if req.TimeClose != nil {
			override.TimeClose = req.TimeClose
		}
		if req.TimeLimit != nil {
			override.TimeLimit = req.TimeLimit
		}
		if req.Attempts != nil {
			override.Attempts = req.Attempts
		}
		if req.Password != nil {
			override.Password = req.Password
		}

		if override.TimeOpen != nil && override.TimeClose != nil && !override.TimeClose.After(*override.TimeOpen) {
			return NewValidationError("time_close", "must be after time_open", override.TimeClose)
		}

		return s.repo.Override().Update(ctx, tx, override)
	})
	if err != nil {
		return nil, err
	}

	return toOverrideResponse(override), nil
}

func (s *overrideService) Delete(ctx context.Context, quizID, overrideID uint, userID string) error {
	s.logger.Info("Deleting override",
		"quiz_id", quizID,
		"override_id", overrideID,
		"user_id", userID)

	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		override, err := s.loadOverride(ctx, tx, quizID, overrideID)
		if err != nil {
			return err
		}
		return s.repo.Override().Delete(ctx, tx, override.ID)
	})
}

func (s *overrideService) GetByID(ctx context.Context, quizID, overrideID uint, userID string) (*OverrideResponse, error) {
	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return nil, err
	}

	override, err := s.loadOverride(ctx, nil, quizID, overrideID)
	if err != nil {
		return nil, err
	}
	return toOverrideResponse(override), nil
}

func (s *overrideService) List(ctx context.Context, quizID uint, userID string) (*OverrideListResponse, error) {
	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return nil, err
	}

	if _, err := s.repo.Quiz().GetByID(ctx, nil, quizID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	overrides, total, err := s.repo.Override().List(ctx, nil, quizID, repositories.OverrideFilters{})
	if err != nil {
		return nil, err
	}

	responses := make([]*OverrideResponse, 0, len(overrides))
	for _, o := range overrides {
		responses = append(responses, toOverrideResponse(o))
	}
	return &OverrideListResponse{Overrides: responses, Total: total}, nil
}

// ===== HELPERS =====

func (s *overrideService) loadOverride(ctx context.Context, tx *gorm.DB, quizID, overrideID uint) (*models.UserOverride, error) {
	override, err := s.repo.Override().GetByID(ctx, tx, overrideID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	if override.QuizID != quizID {
		return nil, ErrOverrideNotFound
	}
	return override, nil
}

func (s *overrideService) requireManager(ctx context.Context, userID string, quizID uint) error {
	canManage, err := canManageQuiz(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if !canManage {
		return NewPermissionError(userID, quizID, "override", "manage", "requires a teacher role")
	}
	return nil
}

func toOverrideResponse(o *models.UserOverride) *OverrideResponse {
	return &OverrideResponse{
		UserOverride: o,
		HasPassword:  o.Password != nil && *o.Password != "",
	}
}
