package model

// PeerEvaluation 通话结束后，被指定的一方对搭档提交的评价
// 每个 (通话会话, 评价人) 只允许一条
type PeerEvaluation struct {
	BaseModel
	SessionID       string `gorm:"size:36;index:idx_eval_session_evaluator,unique" json:"sessionId"`
	EvaluatorID     uint   `gorm:"index:idx_eval_session_evaluator,unique;type:bigint unsigned" json:"evaluatorId"`
	EvaluatedUserID uint   `gorm:"index;type:bigint unsigned" json:"evaluatedUserId"`
	ModuleID        uint   `gorm:"index;type:bigint unsigned" json:"moduleId"`
	ExerciseIndex   int    `json:"exerciseIndex"`
	Grammar         int    `gorm:"not null" json:"grammar"`       // 1-5
	Vocabulary      int    `gorm:"not null" json:"vocabulary"`    // 1-5
	Pronunciation   int    `gorm:"not null" json:"pronunciation"` // 1-5
	Approved        bool   `gorm:"default:false" json:"approved"`
	Feedback        string `gorm:"type:text" json:"feedback"`
}

func (PeerEvaluation) TableName() string {
	return "peer_evaluations"
}
