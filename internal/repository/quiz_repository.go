package repository

import (
	"context"
	"course_connect_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithContext(ctx context.Context) *QuizRepository {
	return &QuizRepository{DB: r.DB.WithContext(ctx)}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// Create 连同题目和选项一起创建
func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

// FindByID 题目与选项均按 id 升序，作为持久化的呈现顺序
func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", orderByID).
		Preload("Questions.Options", orderByID).
		First(&quiz, id).Error
	return &quiz, err
}

func (r *QuizRepository) FindByLesson(lessonID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", orderByID).
		Preload("Questions.Options", orderByID).
		Where("lesson_id = ?", lessonID).
		Order("id ASC").
		First(&quiz).Error
	return &quiz, err
}

func (r *QuizRepository) Updates(id uint, fields map[string]interface{}) error {
	return r.DB.Model(&model.Quiz{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除测验及其题目、选项，作答记录保留
func (r *QuizRepository) Delete(quizID uint) error {
	questionIDs := r.DB.Model(&model.QuizQuestion{}).Select("id").Where("quiz_id = ?", quizID)
	if err := r.DB.Where("quiz_question_id IN (?)", questionIDs).Delete(&model.QuizQuestionOption{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("quiz_id = ?", quizID).Delete(&model.QuizQuestion{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.Quiz{}, quizID).Error
}

// deleteQuizTrees 删除一组课时下的全部测验
func deleteQuizTrees(db *gorm.DB, lessonIDs *gorm.DB) error {
	quizIDs := db.Model(&model.Quiz{}).Select("id").Where("lesson_id IN (?)", lessonIDs)
	questionIDs := db.Model(&model.QuizQuestion{}).Select("id").Where("quiz_id IN (?)", quizIDs)
	if err := db.Where("quiz_question_id IN (?)", questionIDs).Delete(&model.QuizQuestionOption{}).Error; err != nil {
		return err
	}
	if err := db.Where("quiz_id IN (?)", quizIDs).Delete(&model.QuizQuestion{}).Error; err != nil {
		return err
	}
	return db.Where("lesson_id IN (?)", lessonIDs).Delete(&model.Quiz{}).Error
}

func (r *QuizRepository) FindQuestion(id uint) (*model.QuizQuestion, error) {
	var question model.QuizQuestion
	err := r.DB.Preload("Options", orderByID).First(&question, id).Error
	return &question, err
}

func (r *QuizRepository) CreateQuestion(question *model.QuizQuestion) error {
	return r.DB.Create(question).Error
}

func (r *QuizRepository) UpdateQuestion(id uint, fields map[string]interface{}) error {
	return r.DB.Model(&model.QuizQuestion{}).Where("id = ?", id).Updates(fields).Error
}

func (r *QuizRepository) DeleteQuestion(id uint) error {
	if err := r.DB.Where("quiz_question_id = ?", id).Delete(&model.QuizQuestionOption{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.QuizQuestion{}, id).Error
}

func (r *QuizRepository) CreateOption(option *model.QuizQuestionOption) error {
	return r.DB.Create(option).Error
}

func (r *QuizRepository) UpdateOption(id uint, fields map[string]interface{}) error {
	return r.DB.Model(&model.QuizQuestionOption{}).Where("id = ?", id).Updates(fields).Error
}

func (r *QuizRepository) DeleteOptions(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB.Where("id IN ?", ids).Delete(&model.QuizQuestionOption{}).Error
}

// InvalidateAnswers 题目变更后标记历史作答失效
func (r *QuizRepository) InvalidateAnswers(questionID uint, at time.Time) error {
	return r.DB.Model(&model.QuizAnswer{}).
		Where("question_id = ? AND invalidated_at IS NULL", questionID).
		Update("invalidated_at", at).Error
}

// CreateAttempt 先写入作答记录，再批量写入答案
func (r *QuizRepository) CreateAttempt(attempt *model.QuizAttempt, answers []model.QuizAnswer) error {
	if err := r.DB.Omit("Answers").Create(attempt).Error; err != nil {
		return err
	}
	for i := range answers {
		answers[i].AttemptID = attempt.ID
	}
	if len(answers) > 0 {
		if err := r.DB.CreateInBatches(answers, 100).Error; err != nil {
			return err
		}
	}
	attempt.Answers = answers
	return nil
}

func (r *QuizRepository) ListAttempts(userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Preload("Answers", orderByID).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("created_at DESC, id DESC").
		Find(&attempts).Error
	return attempts, err
}

// HasPassingAttempt 用户在课时的任一测验中达到及格分
func (r *QuizRepository) HasPassingAttempt(userID, lessonID uint, passingScore int) (bool, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Where("quiz_attempts.user_id = ? AND quizzes.lesson_id = ? AND quiz_attempts.score >= ?", userID, lessonID, passingScore).
		Count(&count).Error
	return count > 0, err
}

// PassedLessonIDs 课程中通过测验的课时
func (r *QuizRepository) PassedLessonIDs(userID, courseID uint, passingScore int) ([]uint, error) {
	var ids []uint
	err := r.DB.Table("quiz_attempts").
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Joins("JOIN lessons ON lessons.id = quizzes.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("quiz_attempts.user_id = ? AND modules.course_id = ? AND quiz_attempts.score >= ?", userID, courseID, passingScore).
		Distinct().
		Pluck("quizzes.lesson_id", &ids).Error
	return ids, err
}
