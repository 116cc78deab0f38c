package model

// Module 课程下的章节，(course_id, order) 唯一且从 1 开始连续
type Module struct {
	BaseModel
	CourseID    uint     `gorm:"not null;uniqueIndex:idx_module_course_order,priority:1" json:"courseId"`
	Order       int      `gorm:"column:order;not null;uniqueIndex:idx_module_course_order,priority:2" json:"order"`
	Title       string   `gorm:"size:200;not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Duration    int      `gorm:"default:0" json:"duration"`
	Lessons     []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}
