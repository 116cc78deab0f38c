package controller

import (
	"course_connect_backend/internal/util"
	"mime/multipart"

	"github.com/gin-gonic/gin"
)

// currentUser 未登录时直接写出 401
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return user, true
}

// pathID 解析失败时直接写出 400
func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := util.ParamID(ctx, name)
	if err != nil {
		util.HandleError(ctx, err)
		return 0, false
	}
	return id, true
}

// optionalFile 表单中没有该文件时返回 nil
func optionalFile(ctx *gin.Context, name string) *multipart.FileHeader {
	file, err := ctx.FormFile(name)
	if err != nil {
		return nil
	}
	return file
}
