package model

// ModuleRating 模块点赞/点踩，每个用户对每个模块一条
type ModuleRating struct {
	BaseModel
	UserID   uint `gorm:"index:idx_rating_user_module,unique;type:bigint unsigned" json:"userId"`
	ModuleID uint `gorm:"index:idx_rating_user_module,unique;type:bigint unsigned" json:"moduleId"`
	Value    int  `gorm:"not null" json:"value"` // 1 = 赞, -1 = 踩
}

func (ModuleRating) TableName() string {
	return "module_ratings"
}

type ModuleRatingSummary struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}
