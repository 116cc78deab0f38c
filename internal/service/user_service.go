package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"errors"
	"math"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserPage struct {
	Data       []model.User `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// UpdateUserRequest 字段为空表示不修改
type UpdateUserRequest struct {
	FirstName *string         `json:"firstName" binding:"omitempty,min=1"`
	LastName  *string         `json:"lastName" binding:"omitempty,min=1"`
	Email     *string         `json:"email" binding:"omitempty,email"`
	Password  *string         `json:"password" binding:"omitempty,min=8"`
	Role      *model.UserRole `json:"role" binding:"omitempty,oneof=STUDENT INSTRUCTOR ADMIN"`
}

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

func (s *UserService) ListUsers(ctx context.Context, page, limit int, filter repository.UserFilter) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	filter.Search = strings.TrimSpace(filter.Search)

	users, total, err := s.UserRepo.WithContext(ctx).List(filter, page, limit)
	if err != nil {
		return nil, err
	}
	return &UserPage{
		Data: users,
		Pagination: Pagination{
			Total:           total,
			Page:            page,
			Limit:           limit,
			TotalPages:      int(math.Ceil(float64(total) / float64(limit))),
			HasNextPage:     int64(page*limit) < total,
			HasPreviousPage: page > 1,
		},
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.UserRepo.WithContext(ctx).FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// UpdateUser 管理员修改用户资料，可重置密码和调整角色
func (s *UserService) UpdateUser(ctx context.Context, id uint, req UpdateUserRequest) (*model.User, error) {
	return s.update(ctx, id, req)
}

// UpdateProfile 用户修改自己的资料，不能修改角色
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req UpdateUserRequest) (*model.User, error) {
	req.Role = nil
	return s.update(ctx, userID, req)
}

func (s *UserService) update(ctx context.Context, id uint, req UpdateUserRequest) (*model.User, error) {
	repo := s.UserRepo.WithContext(ctx)
	user, err := repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			existing, err := repo.FindByEmail(email)
			if err == nil && existing.ID != user.ID {
				return nil, util.ErrEmailRegistered
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			user.Email = email
		}
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hashed)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}

	if err := repo.Update(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}
	return user, nil
}
