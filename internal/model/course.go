package model

// swagger:model Course
type Course struct {
	BaseModel
	InstructorID     uint     `gorm:"not null;index" json:"instructorId"`
	Title            string   `gorm:"size:200;not null" json:"title"`
	ShortDescription string   `gorm:"size:500" json:"shortDescription"`
	Description      string   `gorm:"type:text" json:"description"`
	Category         string   `gorm:"size:100;index" json:"category"`
	IsActive         bool     `gorm:"not null" json:"isActive"`
	Pricing          float64  `gorm:"not null;default:0" json:"pricing"`
	OriginalPrice    float64  `json:"originalPrice"`
	ImageURL         string   `gorm:"size:500" json:"imageUrl"`
	ImagePublicID    string   `gorm:"size:255" json:"-"`
	VideoURL         string   `gorm:"size:500" json:"videoUrl"`
	VideoPublicID    string   `gorm:"size:255" json:"-"`
	Duration         int      `gorm:"default:0" json:"duration"` // 分钟
	Instructor       *User    `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Modules          []Module `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// IsPaid 是否为付费课程
func (c *Course) IsPaid() bool {
	return c.Pricing > 0
}
