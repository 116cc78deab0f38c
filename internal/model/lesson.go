package model

// Lesson 章节下的课时，(module_id, order) 唯一且从 1 开始连续
type Lesson struct {
	BaseModel
	ModuleID      uint   `gorm:"not null;uniqueIndex:idx_lesson_module_order,priority:1" json:"moduleId"`
	Order         int    `gorm:"column:order;not null;uniqueIndex:idx_lesson_module_order,priority:2" json:"order"`
	Title         string `gorm:"size:200;not null" json:"title"`
	Description   string `gorm:"type:text" json:"description"`
	Content       string `gorm:"type:text" json:"content"`
	Duration      int    `gorm:"default:0" json:"duration"`
	VideoURL      string `gorm:"size:500" json:"videoUrl"`
	VideoPublicID string `gorm:"size:255" json:"-"`
	Quizzes       []Quiz `gorm:"foreignKey:LessonID" json:"quizzes,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}
