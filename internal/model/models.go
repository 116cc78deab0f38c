package model

// All 返回需要自动迁移的全部模型，数据库初始化和测试共用
func All() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Module{},
		&Lesson{},
		&Enrollment{},
		&LessonProgress{},
		&Quiz{},
		&QuizQuestion{},
		&QuizQuestionOption{},
		&QuizAttempt{},
		&QuizAnswer{},
		&Payment{},
		&PaymentHistory{},
		&Certificate{},
	}
}
