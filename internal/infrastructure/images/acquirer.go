package images

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/metrics"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/strategy"
)

// Acquirer downloads an image and uploads it to a CMS media library.
type Acquirer struct {
	downloader *Downloader
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

var _ ports.ImageAcquirer = (*Acquirer)(nil)

// NewAcquirer wires the downloader.
func NewAcquirer(downloader *Downloader, logger *slog.Logger, m *metrics.Metrics) *Acquirer {
	if m == nil {
		m = metrics.Nop()
	}
	return &Acquirer{downloader: downloader, logger: logger, metrics: m}
}

// Acquire returns the CMS media id. Download or upload exhaustion yields
// domain.ErrImageAcquisition; a failed alt-text patch is only logged.
func (a *Acquirer) Acquire(ctx context.Context, media ports.MediaStore, imageURL, altText, title string) (int, error) {
	img, err := a.downloader.Download(ctx, imageURL)
	if err != nil {
		return 0, err
	}

	upload := ports.MediaUpload{
		Data:        img.Data,
		Filename:    img.Filename,
		ContentType: uploadContentType(img.ContentType),
	}

	steps := []strategy.Step[int]{
		{Name: "multipart", Do: func(ctx context.Context) (int, error) {
			return media.UploadMediaMultipart(ctx, upload)
		}},
		{Name: "binary", Do: func(ctx context.Context) (int, error) {
			return media.UploadMediaBinary(ctx, upload)
		}},
	}
	id, method, err := strategy.First(ctx, steps, func(id int) bool { return id > 0 })
	if err != nil {
		a.metrics.ImageAttemptsTotal.WithLabelValues("upload", "failed").Inc()
		return 0, fmt.Errorf("%w: upload %s: %w", domain.ErrImageAcquisition, imageURL, err)
	}
	a.metrics.ImageAttemptsTotal.WithLabelValues("upload:"+method, "ok").Inc()

	if altText != "" || title != "" {
		if err := media.UpdateMedia(ctx, id, altText, title); err != nil && a.logger != nil {
			a.logger.Warn("image alt text not updated", "media_id", id, "error", err)
		}
	}

	if a.logger != nil {
		a.logger.Debug("image uploaded", "media_id", id, "upload", method, "source", img.Source)
	}
	return id, nil
}

func uploadContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "image/jpeg"
	}
	return mediaType
}
