package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

type reportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		logger: logger,
	}
}

const overviewSheet = "Attempts"

// ExportAttemptsOverview renders every real attempt of a quiz as an
// xlsx workbook: one row per attempt plus a summary header block.
func (s *reportService) ExportAttemptsOverview(ctx context.Context, quizID uint, userID string) ([]byte, error) {
	s.logger.Info("Exporting attempts overview", "quiz_id", quizID, "user_id", userID)

	canManage, err := canManageQuiz(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if !canManage {
		return nil, NewPermissionError(userID, quizID, "quiz", "export", "requires a teacher role")
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	attempts, _, err := s.repo.Attempt().List(ctx, nil, quizID, repositories.AttemptFilters{
		SortBy:    "time_start",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.Attempt().GetStats(ctx, nil, quizID)
	if err != nil {
		return nil, err
	}

	users, err := s.loadUserNames(ctx, attempts)
	if err != nil {
		s.logger.Warn("Failed to resolve user names for export", "quiz_id", quizID, "error", err)
		users = map[string]string{}
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), overviewSheet)

	// Summary block
	f.SetCellValue(overviewSheet, "A1", quiz.Title)
	f.SetCellValue(overviewSheet, "A2", "Total attempts")
	f.SetCellValue(overviewSheet, "B2", stats.TotalAttempts)
	f.SetCellValue(overviewSheet, "A3", "Average grade")
	f.SetCellValue(overviewSheet, "B3", stats.AverageGrade)

	headers := []string{"Attempt ID", "User", "Attempt", "State", "Started", "Finished", "Sum grades", "Grade"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		f.SetCellValue(overviewSheet, cell, h)
	}

	settings := quiz.ApplyOverride(nil)
	row := 6
	for _, attempt := range attempts {
		name := users[attempt.UserID]
		if name == "" {
			name = attempt.UserID
		}

		values := []interface{}{
			attempt.ID,
			name,
			attempt.AttemptNumber,
			string(attempt.State),
			attempt.TimeStart.Format("2006-01-02 15:04:05"),
			"",
			"",
			"",
		}
		if attempt.TimeFinish != nil {
			values[5] = attempt.TimeFinish.Format("2006-01-02 15:04:05")
		}
		if attempt.SumGrades != nil {
			values[6] = *attempt.SumGrades
			values[7] = scaleGrade(*attempt.SumGrades, settings)
		}

		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(overviewSheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *reportService) loadUserNames(ctx context.Context, attempts []*models.Attempt) (map[string]string, error) {
	seen := make(map[string]bool, len(attempts))
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names, nil
}
