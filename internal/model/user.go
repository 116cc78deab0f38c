package model

type UserRole string

const (
	Student    UserRole = "STUDENT"
	Instructor UserRole = "INSTRUCTOR"
	Admin      UserRole = "ADMIN"
)

// IsPrivileged 讲师和管理员可以看到题目答案
func (r UserRole) IsPrivileged() bool {
	return r == Instructor || r == Admin
}

// swagger:model User
type User struct {
	BaseModel
	FirstName string   `gorm:"size:100;not null" json:"firstName"`
	LastName  string   `gorm:"size:100;not null" json:"lastName"`
	Email     string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string   `gorm:"size:100;not null" json:"-"`
	Role      UserRole `gorm:"size:20;not null;default:'STUDENT'" json:"role"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
