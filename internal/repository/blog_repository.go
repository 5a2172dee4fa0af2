package repository

import (
	"roofsite-go/internal/model"

	"gorm.io/gorm"
)

// BlogRepository 定义了博客文章的持久化操作。
type BlogRepository interface {
	Create(post *model.BlogPost) error
	FindByUserID(userID uint) ([]model.BlogPost, error)
}

type blogRepository struct {
	db *gorm.DB
}

// NewBlogRepository 创建一个新的 BlogRepository 实例。
func NewBlogRepository(db *gorm.DB) BlogRepository {
	return &blogRepository{db: db}
}

func (r *blogRepository) Create(post *model.BlogPost) error {
	return r.db.Create(post).Error
}

func (r *blogRepository) FindByUserID(userID uint) ([]model.BlogPost, error) {
	var posts []model.BlogPost
	err := r.db.Where("user_id = ?", userID).Order("id desc").Find(&posts).Error
	return posts, err
}
