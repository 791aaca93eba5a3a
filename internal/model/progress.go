package model

// ModuleProgressState 由答题记录实时推导，永不单独落库作为完成判据
type ModuleProgressState struct {
	ModuleID            uint   `json:"moduleId"`
	ActiveExerciseIndex int    `json:"activeExerciseIndex"`
	IsModuleComplete    bool   `json:"isModuleComplete"`
	ExerciseCount       int    `json:"exerciseCount"`
	Satisfied           []bool `json:"satisfied"`
}

// ModuleProgressSnapshot 仅供看板展示的进度快照（只写不读，完成判定始终重新计算）
type ModuleProgressSnapshot struct {
	UUIDBase
	UserID              uint `gorm:"index;type:bigint unsigned" json:"userId"`
	ModuleID            uint `gorm:"index;type:bigint unsigned" json:"moduleId"`
	ActiveExerciseIndex int  `json:"activeExerciseIndex"`
	IsModuleComplete    bool `json:"isModuleComplete"`
}

func (ModuleProgressSnapshot) TableName() string {
	return "module_progress_snapshots"
}
