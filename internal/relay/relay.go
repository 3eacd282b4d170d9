// Package relay moves media attachments between providers: it downloads
// the bytes from the provider that holds them, persists them in the
// local store, and republishes them at a URL the other provider can
// fetch.
package relay

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"frontbridge/internal/domain"
	"frontbridge/internal/metrics"
	"frontbridge/internal/store"
)

// Relay directions recorded in the ledger.
const (
	DirectionSinchToFront = "sinch-to-front"
	DirectionFrontToSinch = "front-to-sinch"
)

// Downloader opens an authenticated byte stream for a media URL.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Relay copies attachments into the media store and derives their
// public URLs.
type Relay struct {
	downloader Downloader
	media      *store.Media
	ledger     *store.Ledger // optional
	publicHost string
	logger     *slog.Logger
}

// Config configures the relay.
type Config struct {
	Downloader Downloader
	Media      *store.Media
	Ledger     *store.Ledger
	PublicHost string
	Logger     *slog.Logger
}

func New(cfg Config) *Relay {
	return &Relay{
		downloader: cfg.Downloader,
		media:      cfg.Media,
		ledger:     cfg.Ledger,
		publicHost: cfg.PublicHost,
		logger:     cfg.Logger,
	}
}

// Attachment is a relayed attachment: stored locally and reachable at
// URL by the counterpart provider.
type Attachment struct {
	Filename string
	URL      string
	Size     int64
}

// Relay downloads sourceURL, stores it under filename, and returns the
// public location. On any failure nothing is published and the caller
// must not notify the counterpart provider.
func (r *Relay) Relay(ctx context.Context, sourceURL, filename, direction string) (Attachment, error) {
	publicURL, err := r.PublicURL(filename)
	if err != nil {
		return Attachment{}, err
	}

	start := time.Now()
	body, err := r.downloader.Download(ctx, sourceURL)
	if err != nil {
		return Attachment{}, err
	}
	defer body.Close()

	size, err := r.media.Save(filename, body)
	if err != nil {
		return Attachment{}, err
	}

	metrics.RelaysTotal.Inc()
	metrics.RelayBytes.Add(float64(size))
	metrics.RelayDuration.Observe(time.Since(start).Seconds())

	if r.ledger != nil {
		entry := store.RelayEntry{
			Filename:  filename,
			SourceURL: sourceURL,
			Direction: direction,
			Size:      size,
		}
		if err := r.ledger.Record(ctx, entry); err != nil {
			r.logger.Warn("failed to record relay in ledger", "filename", filename, "err", err)
		}
	}

	r.logger.Info("attachment relayed",
		"filename", filename,
		"size", size,
		"direction", direction,
	)

	return Attachment{Filename: filename, URL: publicURL, Size: size}, nil
}

// PublicURL derives the URL the counterpart provider fetches a stored
// attachment from.
func (r *Relay) PublicURL(filename string) (string, error) {
	if r.publicHost == "" {
		return "", domain.ErrHostNotConfigured
	}
	return strings.TrimSuffix(r.publicHost, "/") + "/images/" + filename, nil
}
