package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeVideo       = "video/"
	MimeImage       = "image/"
	MimePNG         = "image/png"
	MimeOctetStream = "application/octet-stream"
)

// 媒体资源目录
const (
	MediaCourseImages = "course-images"
	MediaCourseVideos = "course-videos"
	MediaLessonVideos = "lesson-videos"
)

// 上传大小上限
const (
	MaxImageSize = 10 << 20
	MaxVideoSize = 500 << 20
)

var (
	AllowedVideoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".wmv", ".flv", ".webm"}
	AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)
