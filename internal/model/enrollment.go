package model

type EnrollmentStatus string

const (
	EnrollmentNotStarted EnrollmentStatus = "NOT_STARTED"
	EnrollmentInProgress EnrollmentStatus = "IN_PROGRESS"
	EnrollmentCompleted  EnrollmentStatus = "COMPLETED"
)

func (s EnrollmentStatus) rank() int {
	switch s {
	case EnrollmentInProgress:
		return 1
	case EnrollmentCompleted:
		return 2
	default:
		return 0
	}
}

// Advance 状态只能前进，重新计算时不会回退
func (s EnrollmentStatus) Advance(next EnrollmentStatus) EnrollmentStatus {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID       uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:1" json:"userId"`
	CourseID     uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:2;index" json:"courseId"`
	Progress     int              `gorm:"not null;default:0" json:"progress"`
	Status       EnrollmentStatus `gorm:"size:20;not null;default:'NOT_STARTED'" json:"status"`
	LastLessonID *uint            `json:"lastLessonId"`
	Course       *Course          `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	User         *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
