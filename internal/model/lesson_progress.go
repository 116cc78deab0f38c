package model

import "time"

// LessonProgress 每个用户每个课时一条记录；ModuleID 和 CourseID 写入时由课时推导
type LessonProgress struct {
	BaseModel
	UserID           uint       `gorm:"not null;uniqueIndex:idx_progress_user_lesson,priority:1" json:"userId"`
	LessonID         uint       `gorm:"not null;uniqueIndex:idx_progress_user_lesson,priority:2;index" json:"lessonId"`
	ModuleID         uint       `gorm:"not null;index" json:"moduleId"`
	CourseID         uint       `gorm:"not null;index" json:"courseId"`
	Completed        bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt      *time.Time `json:"completedAt"`
	FirstCompletedAt *time.Time `json:"firstCompletedAt"`
	VideoProgress    float64    `gorm:"not null;default:0" json:"videoProgress"`
	LastAccessedAt   *time.Time `json:"lastAccessedAt"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}
