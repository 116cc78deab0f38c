package model

import "time"

// swagger:model Quiz
type Quiz struct {
	BaseModel
	LessonID    uint           `gorm:"not null;index" json:"lessonId"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Questions   []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID       uint                 `gorm:"not null;index" json:"quizId"`
	QuestionText string               `gorm:"type:text;not null" json:"questionText"`
	Hint         string               `gorm:"type:text" json:"hint"`
	Options      []QuizQuestionOption `gorm:"foreignKey:QuizQuestionID" json:"options,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

type QuizQuestionOption struct {
	BaseModel
	QuizQuestionID uint   `gorm:"not null;index" json:"quizQuestionId"`
	OptionText     string `gorm:"type:text;not null" json:"optionText"`
	IsCorrect      bool   `gorm:"not null;default:false" json:"isCorrect"`
}

func (QuizQuestionOption) TableName() string {
	return "quiz_question_options"
}

// QuizAttempt 提交后不可修改
type QuizAttempt struct {
	BaseModel
	UserID  uint         `gorm:"not null;index:idx_attempt_user_quiz,priority:1" json:"userId"`
	QuizID  uint         `gorm:"not null;index:idx_attempt_user_quiz,priority:2" json:"quizId"`
	Score   int          `gorm:"not null" json:"score"`
	Answers []QuizAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// QuizAnswer 作答快照。题目被修改或删除后只标记 InvalidatedAt，历史记录保留
type QuizAnswer struct {
	BaseModel
	AttemptID        uint       `gorm:"not null;index" json:"attemptId"`
	QuestionID       uint       `gorm:"not null;index" json:"questionId"`
	SelectedOptionID uint       `gorm:"not null" json:"selectedOptionId"`
	IsCorrect        bool       `gorm:"not null" json:"isCorrect"`
	InvalidatedAt    *time.Time `json:"invalidatedAt,omitempty"`
}

func (QuizAnswer) TableName() string {
	return "quiz_answers"
}
