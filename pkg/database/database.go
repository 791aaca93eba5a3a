package database

import (
	"fmt"
	"lingopeer_backend/internal/config"
	"lingopeer_backend/internal/model"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseModule{},
		&model.Exercise{},
		&model.Enrollment{},
		&model.ExerciseAnswer{},
		&model.PeerEvaluation{},
		&model.ModuleRating{},
		&model.ModuleProgressSnapshot{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认演示课程（空库时写入，便于本地联调）
	var count int64
	db.Model(&model.Course{}).Count(&count)
	if count == 0 {
		course := &model.Course{
			Title:       "Everyday English Conversations",
			Description: "情景口语课程：从点餐到面试，每个模块以真人练习通话收尾。",
			Language:    "en",
			Level:       "A2",
			Published:   true,
			FreeModules: 3,
		}
		db.Create(course)

		modules := []model.CourseModule{
			{CourseID: course.ID, Title: "Ordering at a Café", Order: 0, Topics: `["ordering food","small talk","prices"]`},
			{CourseID: course.ID, Title: "Asking for Directions", Order: 1, Topics: `["directions","public transport","landmarks"]`},
			{CourseID: course.ID, Title: "A Job Interview", Order: 2, Topics: `["introducing yourself","strengths","work experience"]`},
			{CourseID: course.ID, Title: "Making Plans with Friends", Order: 3, Topics: `["invitations","schedules","suggestions"]`},
		}
		for i := range modules {
			db.Create(&modules[i])
			db.Create(&model.Exercise{
				ModuleID: modules[i].ID,
				Index:    0,
				Kind:     model.FillBlank,
				Title:    "Warm-up: key phrases",
				Prompt:   "I'd like ___ coffee and ___ croissant, please.",
				Blanks:   `[["a"],["a"]]`,
			})
			db.Create(&model.Exercise{
				ModuleID: modules[i].ID,
				Index:    1,
				Kind:     model.Flashcard,
				Title:    "Vocabulary check",
				Prompt:   "Translate the highlighted words.",
			})
			db.Create(&model.Exercise{
				ModuleID:        modules[i].ID,
				Index:           2,
				Kind:            model.LiveCall,
				Title:           "Practice call: " + modules[i].Title,
				Prompt:          "Find a partner online and role-play the scenario.",
				DurationMinutes: 10,
			})
		}
	}

	return db, nil
}
