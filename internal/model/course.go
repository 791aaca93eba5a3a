package model

import "encoding/json"

// ExerciseKind 练习类型
type ExerciseKind string

const (
	FillBlank ExerciseKind = "fill_blank" // 填空题
	LiveCall  ExerciseKind = "live_call"  // 真人通话练习
	Flashcard ExerciseKind = "flashcard"  // 其他自测类练习
)

type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Language    string `gorm:"size:10;not null" json:"language"`
	Level       string `gorm:"size:20" json:"level"` // A1-C2
	Published   bool   `gorm:"default:false" json:"published"`
	// 免费体验的模块数量（前 N 个模块无需报名即可访问）
	FreeModules int            `gorm:"default:3" json:"freeModules"`
	Modules     []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type CourseModule struct {
	BaseModel
	CourseID  uint       `gorm:"index;type:bigint unsigned" json:"courseId"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Order     int        `gorm:"default:0" json:"order"`
	Topics    string     `gorm:"type:json" json:"topics"` // JSON array: 本模块会话主题
	Exercises []Exercise `gorm:"foreignKey:ModuleID" json:"exercises,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

// TopicList 解析 Topics JSON，内容损坏时返回空列表
func (m *CourseModule) TopicList() []string {
	var topics []string
	if m.Topics == "" {
		return topics
	}
	json.Unmarshal([]byte(m.Topics), &topics)
	return topics
}

type Exercise struct {
	BaseModel
	ModuleID uint         `gorm:"index;type:bigint unsigned" json:"moduleId"`
	Index    int          `gorm:"not null" json:"index"` // 模块内顺序，从 0 开始
	Kind     ExerciseKind `gorm:"type:enum('fill_blank','live_call','flashcard');not null" json:"kind"`
	Title    string       `gorm:"size:255" json:"title"`
	Prompt   string       `gorm:"type:text" json:"prompt"`
	// 填空题：JSON array，每个元素为该空位可接受的答案列表
	Blanks string `gorm:"type:json" json:"blanks,omitempty"`
	// 通话练习：约定时长（分钟）
	DurationMinutes int `gorm:"default:0" json:"durationMinutes"`
}

func (Exercise) TableName() string {
	return "exercises"
}

// BlankAnswers 解析 Blanks JSON: [["an","a"],["apple"]]
func (e *Exercise) BlankAnswers() [][]string {
	var blanks [][]string
	if e.Blanks == "" {
		return blanks
	}
	json.Unmarshal([]byte(e.Blanks), &blanks)
	return blanks
}

type Enrollment struct {
	BaseModel
	UserID   uint `gorm:"index:idx_enroll_user_course,unique;type:bigint unsigned" json:"userId"`
	CourseID uint `gorm:"index:idx_enroll_user_course,unique;type:bigint unsigned" json:"courseId"`
	Active   bool `gorm:"default:true" json:"active"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
