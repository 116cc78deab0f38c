package service

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"course_connect_backend/pkg/monitoring"
	"course_connect_backend/pkg/tracing"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OptionInput struct {
	ID         *uint  `json:"id"`
	OptionText string `json:"optionText" binding:"required"`
	IsCorrect  bool   `json:"isCorrect"`
}

type QuestionInput struct {
	QuestionText string        `json:"questionText" binding:"required"`
	Hint         string        `json:"hint"`
	Options      []OptionInput `json:"options" binding:"required,min=1,dive"`
}

type CreateQuizRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Questions   []QuestionInput `json:"questions" binding:"dive"`
}

type UpdateQuizRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// SubmitQuizRequest answers 以题目 id 为键，值为所选选项 id
type SubmitQuizRequest struct {
	Answers map[uint]uint `json:"answers" binding:"required"`
}

type AnswerResult struct {
	QuestionID       uint `json:"questionId"`
	SelectedOptionID uint `json:"selectedOptionId"`
	IsCorrect        bool `json:"isCorrect"`
}

type SubmitResult struct {
	AttemptID      uint           `json:"attemptId"`
	Score          int            `json:"score"`
	CorrectCount   int            `json:"correctCount"`
	TotalQuestions int            `json:"totalQuestions"`
	Passed         bool           `json:"passed"`
	Results        []AnswerResult `json:"results"`
}

type QuizService struct {
	Quizzes *repository.QuizRepository
	Guard   *CourseGuard
	Tx      *repository.Transactor
	Cfg     *config.Config
	// Shuffle 随机排列，测试中可替换
	Shuffle func(n int, swap func(i, j int))
}

func NewQuizService(quizzes *repository.QuizRepository, guard *CourseGuard, tx *repository.Transactor, cfg *config.Config) *QuizService {
	return &QuizService{
		Quizzes: quizzes,
		Guard:   guard,
		Tx:      tx,
		Cfg:     cfg,
		Shuffle: rand.Shuffle,
	}
}

// validateQuestion 每道题至少一个选项且至少一个正确答案
func validateQuestion(q QuestionInput) error {
	if len(q.Options) == 0 {
		return util.BadRequestError("NO_OPTIONS", fmt.Sprintf("question %q has no options", q.QuestionText))
	}
	for _, o := range q.Options {
		if o.IsCorrect {
			return nil
		}
	}
	return util.BadRequestError("NO_CORRECT_OPTION", fmt.Sprintf("question %q has no correct option", q.QuestionText))
}

func buildQuestion(quizID uint, q QuestionInput) model.QuizQuestion {
	question := model.QuizQuestion{
		QuizID:       quizID,
		QuestionText: q.QuestionText,
		Hint:         q.Hint,
		Options:      make([]model.QuizQuestionOption, 0, len(q.Options)),
	}
	for _, o := range q.Options {
		question.Options = append(question.Options, model.QuizQuestionOption{
			OptionText: o.OptionText,
			IsCorrect:  o.IsCorrect,
		})
	}
	return question
}

func (s *QuizService) find(ctx context.Context, quizID uint) (*model.Quiz, error) {
	quiz, err := s.Quizzes.WithContext(ctx).FindByID(quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	return quiz, err
}

// CreateQuiz 为课时创建测验，题目和选项一并写入
func (s *QuizService) CreateQuiz(ctx context.Context, user *util.Claims, lessonID uint, req CreateQuizRequest) (*model.Quiz, error) {
	if _, err := s.Guard.Lesson(ctx, user, lessonID); err != nil {
		return nil, err
	}
	for _, q := range req.Questions {
		if err := validateQuestion(q); err != nil {
			return nil, err
		}
	}

	quiz := &model.Quiz{
		LessonID:    lessonID,
		Title:       req.Title,
		Description: req.Description,
	}
	for _, q := range req.Questions {
		quiz.Questions = append(quiz.Questions, buildQuestion(0, q))
	}
	if err := s.Quizzes.WithContext(ctx).Create(quiz); err != nil {
		return nil, err
	}

	logger.Log.Info("Quiz created",
		zap.Uint("quizID", quiz.ID),
		zap.Uint("lessonID", lessonID),
		zap.Int("questions", len(quiz.Questions)),
	)
	return s.find(ctx, quiz.ID)
}

// GetQuiz 按调用者角色投影，学员看不到正确答案
func (s *QuizService) GetQuiz(ctx context.Context, quizID uint, role model.UserRole) (*model.QuizView, error) {
	quiz, err := s.find(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return model.NewQuizView(quiz, role.IsPrivileged()), nil
}

func (s *QuizService) GetLessonQuiz(ctx context.Context, lessonID uint, role model.UserRole) (*model.QuizView, error) {
	quiz, err := s.Quizzes.WithContext(ctx).FindByLesson(lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.NewQuizView(quiz, role.IsPrivileged()), nil
}

func (s *QuizService) UpdateQuiz(ctx context.Context, user *util.Claims, quizID uint, req UpdateQuizRequest) (*model.Quiz, error) {
	quiz, err := s.find(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Guard.Lesson(ctx, user, quiz.LessonID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if len(fields) > 0 {
		if err := s.Quizzes.WithContext(ctx).Updates(quizID, fields); err != nil {
			return nil, err
		}
	}
	return s.find(ctx, quizID)
}

// DeleteQuiz 删除题目和选项，历史作答保留
func (s *QuizService) DeleteQuiz(ctx context.Context, user *util.Claims, quizID uint) error {
	quiz, err := s.find(ctx, quizID)
	if err != nil {
		return err
	}
	if _, err := s.Guard.Lesson(ctx, user, quiz.LessonID); err != nil {
		return err
	}
	return s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		return s.Quizzes.WithTx(tx).Delete(quizID)
	})
}

// grade 校验答案完整性并评分，不写库。
// 不属于本题的选项判为错误，测验之外的题目 ID 忽略
func grade(quiz *model.Quiz, answers map[uint]uint) ([]model.QuizAnswer, int, error) {
	if len(quiz.Questions) == 0 {
		return nil, 0, util.ErrQuizHasNoQuestions
	}

	result := make([]model.QuizAnswer, 0, len(quiz.Questions))
	correct := 0
	for _, q := range quiz.Questions {
		selected, ok := answers[q.ID]
		if !ok {
			return nil, 0, util.BadRequestError("UNANSWERED_QUESTION", fmt.Sprintf("question %d is not answered", q.ID))
		}

		isCorrect := false
		for _, o := range q.Options {
			if o.ID == selected && o.IsCorrect {
				isCorrect = true
				break
			}
		}

		if isCorrect {
			correct++
		}
		result = append(result, model.QuizAnswer{
			QuestionID:       q.ID,
			SelectedOptionID: selected,
			IsCorrect:        isCorrect,
		})
	}
	return result, correct, nil
}

// QuizScore round(correct / total * 100)
func QuizScore(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// SubmitAnswers 评分并在同一事务中写入作答和答案；缺答任何一题整体拒绝
func (s *QuizService) SubmitAnswers(ctx context.Context, userID, quizID uint, answers map[uint]uint) (result *SubmitResult, err error) {
	ctx, span := tracing.Start(ctx, "quiz.submit", attribute.Int("quiz_id", int(quizID)), attribute.Int("user_id", int(userID)))
	defer func() { tracing.End(span, err) }()

	quiz, err := s.find(ctx, quizID)
	if err != nil {
		return nil, err
	}

	graded, correct, err := grade(quiz, answers)
	if err != nil {
		monitoring.QuizSubmissions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	total := len(quiz.Questions)
	attempt := &model.QuizAttempt{
		UserID: userID,
		QuizID: quizID,
		Score:  QuizScore(correct, total),
	}
	err = s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		// 重试时从干净的副本重新写入
		attempt.ID = 0
		rows := append([]model.QuizAnswer(nil), graded...)
		return s.Quizzes.WithTx(tx).CreateAttempt(attempt, rows)
	})
	if err != nil {
		monitoring.QuizSubmissions.WithLabelValues("error").Inc()
		return nil, err
	}

	passed := attempt.Score >= s.Cfg.Quiz.PassingScore
	if passed {
		monitoring.QuizSubmissions.WithLabelValues("passed").Inc()
	} else {
		monitoring.QuizSubmissions.WithLabelValues("failed").Inc()
	}

	results := make([]AnswerResult, 0, len(graded))
	for _, a := range graded {
		results = append(results, AnswerResult{
			QuestionID:       a.QuestionID,
			SelectedOptionID: a.SelectedOptionID,
			IsCorrect:        a.IsCorrect,
		})
	}

	logger.Log.Info("Quiz submitted",
		zap.Uint("userID", userID),
		zap.Uint("quizID", quizID),
		zap.Int("score", attempt.Score),
	)
	return &SubmitResult{
		AttemptID:      attempt.ID,
		Score:          attempt.Score,
		CorrectCount:   correct,
		TotalQuestions: total,
		Passed:         passed,
		Results:        results,
	}, nil
}

// GetRandomizedPresentation 返回题目和选项各自打乱后的副本，存储顺序不变
func (s *QuizService) GetRandomizedPresentation(ctx context.Context, quizID uint, role model.UserRole) (*model.QuizView, error) {
	quiz, err := s.find(ctx, quizID)
	if err != nil {
		return nil, err
	}

	view := model.NewQuizView(quiz, role.IsPrivileged())
	s.Shuffle(len(view.Questions), func(i, j int) {
		view.Questions[i], view.Questions[j] = view.Questions[j], view.Questions[i]
	})
	for i := range view.Questions {
		options := view.Questions[i].Options
		s.Shuffle(len(options), func(a, b int) {
			options[a], options[b] = options[b], options[a]
		})
	}
	return view, nil
}

func (s *QuizService) GetQuizAttempts(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	if _, err := s.find(ctx, quizID); err != nil {
		return nil, err
	}
	return s.Quizzes.WithContext(ctx).ListAttempts(userID, quizID)
}
