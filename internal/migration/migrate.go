package migration

import (
	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
)

// Models lists every table owned by the forum engine
func Models() []interface{} {
	return []interface{}{
		&domain.Category{},
		&domain.Board{},
		&domain.Topic{},
		&domain.Message{},
		&domain.Poll{},
		&domain.PollChoice{},
		&domain.PollVote{},
		&domain.ReadMarker{},
		&domain.Report{},
		&domain.OnlineEntry{},
	}
}

// Run executes AutoMigrate for the forum tables
func Run(db *gorm.DB) error {
	// 테이블 없으면 생성, 있으면 컬럼/인덱스만 보강
	return db.AutoMigrate(Models()...)
}

// Seed inserts a default category/board set when the forum is empty
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		categories := []domain.Category{
			{ID: 1, Name: "커뮤니티", OrderNum: 1},
			{ID: 2, Name: "새로운 소식", OrderNum: 2},
		}
		if err := tx.Create(&categories).Error; err != nil {
			return err
		}

		boards := []domain.Board{
			{ID: 1, CategoryID: 1, Name: "자유게시판", Description: "자유게시판", OrderNum: 1},
			{ID: 2, CategoryID: 1, Name: "질문과 답변", Description: "질문과 답변", OrderNum: 2},
			{ID: 3, CategoryID: 2, Name: "공지사항", Description: "운영진 공지", OrderNum: 1},
			{ID: 4, CategoryID: 2, Name: "사용기", Description: "사용기", OrderNum: 2},
		}
		return tx.Create(&boards).Error
	})
}
