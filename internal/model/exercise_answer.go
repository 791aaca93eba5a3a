package model

import "encoding/json"

// ExerciseAnswer 每个 (用户, 模块, 练习序号) 一条记录，重复提交时覆盖
type ExerciseAnswer struct {
	BaseModel
	UserID        uint   `gorm:"index:idx_answer_slot,unique;type:bigint unsigned" json:"userId"`
	ModuleID      uint   `gorm:"index:idx_answer_slot,unique;type:bigint unsigned" json:"moduleId"`
	ExerciseIndex int    `gorm:"index:idx_answer_slot,unique" json:"exerciseIndex"`
	Answers       string `gorm:"type:json" json:"answers"` // JSON array of strings
	IsCorrect     bool   `gorm:"default:false" json:"isCorrect"`
	IsSubmitted   bool   `gorm:"default:false" json:"isSubmitted"`
}

func (ExerciseAnswer) TableName() string {
	return "exercise_answers"
}

func (a *ExerciseAnswer) AnswerList() []string {
	var answers []string
	if a.Answers == "" {
		return answers
	}
	json.Unmarshal([]byte(a.Answers), &answers)
	return answers
}
