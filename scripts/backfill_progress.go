// 手动回填进度快照脚本
//
// 完成判定始终由答题记录实时推导，快照只服务于看板展示。
// 大批量导入答题数据后（例如从旧系统迁移），用本脚本为所有学员
// 重算一遍快照，避免看板长时间显示空白。
//
// 用法: go run scripts/backfill_progress.go

package main

import (
	"lingopeer_backend/internal/config"
	"lingopeer_backend/internal/model"
	"lingopeer_backend/internal/repository"
	"lingopeer_backend/internal/service"
	"lingopeer_backend/pkg/database"
	"lingopeer_backend/pkg/logger"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}

	courseRepo := repository.NewCourseRepository(db)
	answerRepo := repository.NewExerciseAnswerRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	progression := service.NewProgressionService(courseRepo, answerRepo, progressRepo)

	var users []model.User
	if err := db.Find(&users).Error; err != nil {
		log.Fatalf("读取用户失败: %v", err)
	}
	var modules []model.CourseModule
	if err := db.Find(&modules).Error; err != nil {
		log.Fatalf("读取模块失败: %v", err)
	}

	written := 0
	for _, user := range users {
		for _, mod := range modules {
			state, err := progression.BuildModuleProgress(user.ID, mod.ID)
			if err != nil {
				log.Printf("跳过 user=%d module=%d: %v", user.ID, mod.ID, err)
				continue
			}
			// 没有任何进度的模块不落快照
			if state.ActiveExerciseIndex == 0 && !state.IsModuleComplete {
				continue
			}
			if err := progression.SaveSnapshot(user.ID, state); err != nil {
				log.Printf("写入失败 user=%d module=%d: %v", user.ID, mod.ID, err)
				continue
			}
			written++
		}
	}

	log.Printf("回填完成：%d 个用户 × %d 个模块，写入 %d 条快照", len(users), len(modules), written)
}
