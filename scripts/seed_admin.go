// 创建或重置管理员账号
//
// 系统不开放管理员注册，首次部署时用此脚本初始化。
// 账号已存在时提升为管理员并重置密码。
//
// 用法: go run scripts/seed_admin.go -email admin@example.com -password 'xxxxxxxx'

package main

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/pkg/database"
	"course_connect_backend/pkg/logger"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	email := flag.String("email", "", "管理员邮箱")
	password := flag.String("password", "", "管理员密码，至少 8 位")
	firstName := flag.String("first-name", "System", "名")
	lastName := flag.String("last-name", "Admin", "姓")
	flag.Parse()

	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" || len(*password) < 8 {
		log.Fatal("必须提供 -email 和至少 8 位的 -password")
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("密码加密失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	users := repository.NewUserRepository(db).WithContext(ctx)

	user, err := users.FindByEmail(*email)
	switch {
	case err == nil:
		user.Role = model.Admin
		user.Password = string(hashed)
		if err := users.Update(user); err != nil {
			log.Fatalf("更新管理员失败: %v", err)
		}
		log.Printf("已将 %s 设置为管理员", *email)
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = &model.User{
			FirstName: *firstName,
			LastName:  *lastName,
			Email:     *email,
			Password:  string(hashed),
			Role:      model.Admin,
		}
		if err := users.Create(user); err != nil {
			log.Fatalf("创建管理员失败: %v", err)
		}
		log.Printf("管理员 %s 创建成功 (id=%d)", *email, user.ID)
	default:
		log.Fatalf("查询用户失败: %v", err)
	}
}
