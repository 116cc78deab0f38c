package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UpdateQuestionRequest struct {
	QuestionText *string       `json:"questionText"`
	Hint         *string       `json:"hint"`
	Options      []OptionInput `json:"options" binding:"omitempty,dive"`
}

// QuizQuestionService 题目管理。修改或删除题目时旧作答标记失效而不是删除
type QuizQuestionService struct {
	Quizzes *repository.QuizRepository
	Guard   *CourseGuard
	Tx      *repository.Transactor
	Now     func() time.Time
}

func NewQuizQuestionService(quizzes *repository.QuizRepository, guard *CourseGuard, tx *repository.Transactor) *QuizQuestionService {
	return &QuizQuestionService{Quizzes: quizzes, Guard: guard, Tx: tx, Now: time.Now}
}

// authorize 通过 题目 -> 测验 -> 课时 找到课程并校验权限
func (s *QuizQuestionService) authorize(ctx context.Context, user *util.Claims, quizID uint) error {
	quiz, err := s.Quizzes.WithContext(ctx).FindByID(quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrQuizNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.Guard.Lesson(ctx, user, quiz.LessonID)
	return err
}

func (s *QuizQuestionService) findQuestion(ctx context.Context, questionID uint) (*model.QuizQuestion, error) {
	question, err := s.Quizzes.WithContext(ctx).FindQuestion(questionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	return question, err
}

func (s *QuizQuestionService) CreateQuestion(ctx context.Context, user *util.Claims, quizID uint, req QuestionInput) (*model.QuizQuestion, error) {
	if err := s.authorize(ctx, user, quizID); err != nil {
		return nil, err
	}
	if err := validateQuestion(req); err != nil {
		return nil, err
	}

	question := buildQuestion(quizID, req)
	if err := s.Quizzes.WithContext(ctx).CreateQuestion(&question); err != nil {
		return nil, err
	}
	return s.findQuestion(ctx, question.ID)
}

// UpdateQuestion 带 id 的选项更新，不带 id 的新增，未出现的删除
func (s *QuizQuestionService) UpdateQuestion(ctx context.Context, user *util.Claims, questionID uint, req UpdateQuestionRequest) (*model.QuizQuestion, error) {
	question, err := s.findQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, user, question.QuizID); err != nil {
		return nil, err
	}

	if req.Options != nil {
		text := question.QuestionText
		if req.QuestionText != nil {
			text = *req.QuestionText
		}
		if err := validateQuestion(QuestionInput{QuestionText: text, Options: req.Options}); err != nil {
			return nil, err
		}
	}

	existing := make(map[uint]bool, len(question.Options))
	for _, o := range question.Options {
		existing[o.ID] = true
	}
	kept := make(map[uint]bool, len(req.Options))
	for _, o := range req.Options {
		if o.ID == nil {
			continue
		}
		if !existing[*o.ID] {
			return nil, util.BadRequestError("INVALID_OPTION", fmt.Sprintf("option %d does not belong to question %d", *o.ID, questionID))
		}
		kept[*o.ID] = true
	}

	err = s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		repo := s.Quizzes.WithTx(tx)

		if err := repo.InvalidateAnswers(questionID, s.Now()); err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if req.QuestionText != nil {
			fields["question_text"] = *req.QuestionText
		}
		if req.Hint != nil {
			fields["hint"] = *req.Hint
		}
		if len(fields) > 0 {
			if err := repo.UpdateQuestion(questionID, fields); err != nil {
				return err
			}
		}

		if req.Options == nil {
			return nil
		}

		var removed []uint
		for _, o := range question.Options {
			if !kept[o.ID] {
				removed = append(removed, o.ID)
			}
		}
		if err := repo.DeleteOptions(removed); err != nil {
			return err
		}

		for _, o := range req.Options {
			if o.ID != nil {
				err := repo.UpdateOption(*o.ID, map[string]interface{}{
					"option_text": o.OptionText,
					"is_correct":  o.IsCorrect,
				})
				if err != nil {
					return err
				}
				continue
			}
			if err := repo.CreateOption(&model.QuizQuestionOption{
				QuizQuestionID: questionID,
				OptionText:     o.OptionText,
				IsCorrect:      o.IsCorrect,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Quiz question updated, previous answers invalidated", zap.Uint("questionID", questionID))
	return s.findQuestion(ctx, questionID)
}

func (s *QuizQuestionService) DeleteQuestion(ctx context.Context, user *util.Claims, questionID uint) error {
	question, err := s.findQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, user, question.QuizID); err != nil {
		return err
	}

	return s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		repo := s.Quizzes.WithTx(tx)
		if err := repo.InvalidateAnswers(questionID, s.Now()); err != nil {
			return err
		}
		return repo.DeleteQuestion(questionID)
	})
}
