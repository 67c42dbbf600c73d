package repository

import (
	"context"

	"gorm.io/gorm"

	"groupsync/backend/internal/model"
)

// GroupRepository 群组成员数据访问接口
type GroupRepository interface {
	// ListMemberIDs 返回群组当前成员 ID（按 user_id 升序，保证重算结果稳定）
	ListMemberIDs(ctx context.Context, groupID string) ([]string, error)
	// ListGroupIDsByUser 返回用户所在的全部群组 ID
	ListGroupIDsByUser(ctx context.Context, userID string) ([]string, error)
}

type groupRepo struct {
	db *gorm.DB
}

// NewGroupRepo 创建 GroupRepository 实例
func NewGroupRepo(db *gorm.DB) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) ListMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *groupRepo) ListGroupIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("user_id = ?", userID).
		Order("group_id ASC").
		Pluck("group_id", &ids).Error
	return ids, err
}
