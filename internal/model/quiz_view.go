package model

// QuizView 对外展示的测验结构，IsCorrect 只在有权限时输出
type QuizView struct {
	ID          uint               `json:"id"`
	LessonID    uint               `json:"lessonId"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Questions   []QuizQuestionView `json:"questions"`
}

type QuizQuestionView struct {
	ID           uint             `json:"id"`
	QuestionText string           `json:"questionText"`
	Hint         string           `json:"hint,omitempty"`
	Options      []QuizOptionView `json:"options"`
}

type QuizOptionView struct {
	ID         uint   `json:"id"`
	OptionText string `json:"optionText"`
	IsCorrect  *bool  `json:"isCorrect,omitempty"`
}

// NewQuizView 按角色投影测验，不修改原对象
func NewQuizView(quiz *Quiz, showAnswers bool) *QuizView {
	view := &QuizView{
		ID:          quiz.ID,
		LessonID:    quiz.LessonID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Questions:   make([]QuizQuestionView, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		qv := QuizQuestionView{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Hint:         q.Hint,
			Options:      make([]QuizOptionView, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			ov := QuizOptionView{ID: o.ID, OptionText: o.OptionText}
			if showAnswers {
				correct := o.IsCorrect
				ov.IsCorrect = &correct
			}
			qv.Options = append(qv.Options, ov)
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}
