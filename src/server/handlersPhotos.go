package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	app "albumserv/src/app"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	PhotoUploader interface {
		UploadPhoto(ctx context.Context, dir, filename, contentType string, object io.Reader, size int64) (app.UploadResult, error)
		DeleteFile(ctx context.Context, key string) error
	}

	PhotoIndex interface {
		Add(ctx context.Context, record app.PhotoRecord) error
		List(ctx context.Context) ([]app.PhotoRecord, error)
	}

	PhotoHandler struct {
		s3        PhotoUploader
		index     PhotoIndex
		log       *zap.SugaredLogger
		maxUpload int64
		now       func() time.Time
		newID     func() string
	}
)

const (
	photoFormField    = "photo"
	dateQueryParam    = "date"
	uploadDir         = "uploads"
	thumbnailDir      = "thumbs"
	defaultPhotoName  = "photo.jpg"
	isoMillisLayout   = "2006-01-02T15:04:05.000Z"
	multipartOverhead = 1 << 20
)

func NewPhotoHandler(s3Client PhotoUploader, index PhotoIndex, maxUpload int64, logger *zap.SugaredLogger) *PhotoHandler {
	return &PhotoHandler{
		s3:        s3Client,
		index:     index,
		log:       logger,
		maxUpload: maxUpload,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (p *PhotoHandler) GetPhotos(c *gin.Context) {
	records, err := p.index.List(c.Request.Context())
	if err != nil {
		p.log.Errorw("fetch failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch photos", "error": err.Error()})
		return
	}
	date := parseDateParam(c.Query(dateQueryParam))
	c.JSON(http.StatusOK, gin.H{"photos": app.FilterPhotosByDate(records, date)})
}

func (p *PhotoHandler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, p.maxUpload+multipartOverhead)
	fileHeader, err := c.FormFile(photoFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File is too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "File is required under `photo` field."})
		return
	}
	if fileHeader.Size > p.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File is too large."})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload photo", "error": err.Error()})
		return
	}
	defer file.Close()

	// Read the file into a buffer
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, file); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload photo", "error": fmt.Errorf("failed to read file: %w", err).Error()})
		return
	}
	data := buffer.Bytes()
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	ctx := c.Request.Context()
	uploaded, err := p.s3.UploadPhoto(ctx, uploadDir, fileHeader.Filename, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		p.log.Errorw("upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload photo", "error": err.Error()})
		return
	}

	record := p.buildRecord(uploaded, fileHeader.Filename, c.PostForm("selectedDate"))
	thumbKey := ""
	if strings.HasPrefix(contentType, "image/") {
		thumbKey, record.ThumbnailURL = p.uploadThumbnail(ctx, fileHeader.Filename, data)
	}

	if err := p.index.Add(ctx, record); err != nil {
		p.log.Errorw("index write failed", "error", err, "key", uploaded.Key)
		for _, key := range []string{uploaded.Key, thumbKey} {
			if key == "" {
				continue
			}
			if err := p.s3.DeleteFile(ctx, key); err != nil {
				p.log.Warnw("orphaned object", "key", key, "error", err)
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload photo", "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"photo": record})
}

func (p *PhotoHandler) buildRecord(uploaded app.UploadResult, filename, selectedDate string) app.PhotoRecord {
	uploadedAt := p.now()
	base := uploadedAt
	var selected *string
	if t, ok := app.ParseISO(selectedDate); ok {
		base = t
		iso := t.UTC().Format(isoMillisLayout)
		selected = &iso
	}
	if filename == "" {
		filename = defaultPhotoName
	}
	return app.PhotoRecord{
		ID:           p.newID(),
		Key:          uploaded.Key,
		URL:          uploaded.URL,
		FileName:     filename,
		SelectedDate: selected,
		Timestamp:    uploadedAt.UnixMilli(),
		CreatedAt:    base.UTC().Format(isoMillisLayout),
	}
}

// uploadThumbnail is best effort; it returns empty strings on failure.
func (p *PhotoHandler) uploadThumbnail(ctx context.Context, filename string, data []byte) (string, string) {
	thumb, err := app.MakeThumbnail(data)
	if err != nil {
		p.log.Debugw("thumbnail skipped", "file", filename, "error", err)
		return "", ""
	}
	result, err := p.s3.UploadPhoto(ctx, thumbnailDir, filename+"_thumb.jpg", "image/jpeg", bytes.NewReader(thumb), int64(len(thumb)))
	if err != nil {
		p.log.Warnw("thumbnail upload failed", "file", filename, "error", err)
		return "", ""
	}
	return result.Key, result.URL
}

// parseDateParam reads YYYY-MM-DD or an ISO timestamp as a local calendar
// date. Anything else means no date filter.
func parseDateParam(value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return &t
	}
	if t, ok := app.ParseISO(value); ok {
		local := t.In(time.Local)
		return &local
	}
	return nil
}
