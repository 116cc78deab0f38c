package service

import (
	"context"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrInvalidImage = util.BadRequestError("INVALID_IMAGE", "only jpg, png, gif or webp images are allowed")
	ErrInvalidVideo = util.BadRequestError("INVALID_VIDEO", "unsupported video format")
	ErrFileTooLarge = util.BadRequestError("FILE_TOO_LARGE", "file exceeds the size limit")
)

// VideoUpload 上传后的视频及探测到的时长
type VideoUpload struct {
	MediaObject
	DurationMinutes int
}

// MediaService 校验并上传课程图片和视频
type MediaService struct {
	Store   MediaStore
	TempDir string
}

func NewMediaService(store MediaStore, localPath string) *MediaService {
	return &MediaService{Store: store, TempDir: filepath.Join(localPath, "temp")}
}

func contentType(file *multipart.FileHeader, detected string) string {
	if ct := file.Header.Get("Content-Type"); ct != "" && ct != util.MimeOctetStream {
		return ct
	}
	return detected
}

func (s *MediaService) UploadImage(ctx context.Context, folder string, file *multipart.FileHeader) (*MediaObject, error) {
	if !util.HasAllowedExtension(file.Filename, util.AllowedImageExtensions) {
		return nil, ErrInvalidImage
	}
	if file.Size > util.MaxImageSize {
		return nil, ErrFileTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	detected, err := util.ValidateMimeType(src, []string{util.MimeImage})
	if err != nil {
		return nil, util.Wrapf(ErrInvalidImage, "invalid image content: %s", detected)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return s.Store.UploadMedia(ctx, folder, file.Filename, src, file.Size, contentType(file, detected))
}

// UploadVideo 先落盘到临时目录探测时长，再上传
func (s *MediaService) UploadVideo(ctx context.Context, folder string, file *multipart.FileHeader) (*VideoUpload, error) {
	if !util.HasAllowedExtension(file.Filename, util.AllowedVideoExtensions) {
		return nil, ErrInvalidVideo
	}
	if file.Size > util.MaxVideoSize {
		return nil, ErrFileTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	detected, err := util.ValidateMimeType(src, []string{util.MimeVideo, util.MimeOctetStream})
	if err != nil {
		return nil, util.Wrapf(ErrInvalidVideo, "invalid video content: %s", detected)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.TempDir, 0755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.TempDir, "video-*"+strings.ToLower(filepath.Ext(file.Filename)))
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	minutes := 0
	if info, err := util.GetVideoInfo(tmpPath); err != nil {
		logger.Log.Warn("Failed to probe video duration", zap.String("file", file.Filename), zap.Error(err))
	} else {
		minutes = info.DurationMinutes()
	}

	obj, err := s.Store.UploadMediaFile(ctx, folder, file.Filename, tmpPath, contentType(file, detected))
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}
	return &VideoUpload{MediaObject: *obj, DurationMinutes: minutes}, nil
}
