// Package fetch streams resolved audio from the retrieval backend. The
// backend exposes two extraction methods behind one endpoint; whenever the
// primary method fails, whether blocked by the source platform or out of
// retry budget, the fallback is tried against the same URL before the job
// is failed.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/logger"
)

// Method selects the backend extraction method.
type Method string

const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
)

// errPlatformBlock marks a 403 from the retrieval backend: the source
// platform refused the primary method, so the fallback should be tried.
var errPlatformBlock = errors.New("platform blocked extraction")

// ProgressFunc receives the download fraction in [0,1]. Called with 1.0 when
// the stream completes; never called when the total size is unknown.
type ProgressFunc func(fraction float64)

// Downloader pulls audio streams from the retrieval backend into temp files.
type Downloader struct {
	BaseURL string
	client  *http.Client
	logger  *logger.Logger

	retryBase time.Duration
}

func NewDownloader(baseURL string, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.Default()
	}
	return &Downloader{
		BaseURL:   baseURL,
		client:    &http.Client{Timeout: constants.DefaultHTTPTimeout},
		logger:    log.WithComponent("fetch"),
		retryBase: constants.DefaultRetryBase,
	}
}

// Download retrieves the audio behind sourceURL into a temp file under
// destDir and returns its path. It tries the primary method first; any
// primary failure other than cancellation moves on to the fallback, after
// transient failures have had their bounded exponential backoff within the
// method. The caller owns the returned file.
func (d *Downloader) Download(ctx context.Context, sourceURL, destDir string, progress ProgressFunc) (string, error) {
	var lastErr error
	for _, method := range []Method{MethodPrimary, MethodFallback} {
		path, err := d.downloadWithRetry(ctx, sourceURL, destDir, method, progress)
		if err == nil {
			return path, nil
		}
		lastErr = err

		if domain.KindOf(err) == domain.ErrorKindCancelled {
			return "", err
		}
		if errors.Is(err, errPlatformBlock) {
			d.logger.Warn("Extraction method blocked", "method", string(method))
		} else {
			d.logger.Warn("Extraction method failed", "method", string(method), "error", err)
		}
	}
	return "", domain.NewResolutionError(domain.KindOf(lastErr), domain.StageFetch,
		fmt.Errorf("all extraction methods failed: %w", lastErr))
}

func (d *Downloader) downloadWithRetry(ctx context.Context, sourceURL, destDir string, method Method, progress ProgressFunc) (string, error) {
	var lastErr error
	for attempt := 0; attempt < constants.DefaultRetryCount; attempt++ {
		if attempt > 0 {
			backoff := d.retryBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", domain.NewResolutionError(domain.ErrorKindCancelled, domain.StageFetch, ctx.Err())
			}
		}

		path, err := d.downloadOnce(ctx, sourceURL, destDir, method, progress)
		if err == nil {
			return path, nil
		}
		lastErr = err

		if !domain.Retriable(err) {
			return "", err
		}
		d.logger.Warn("Download attempt failed", "method", string(method), "attempt", attempt+1, "error", err)
	}
	return "", domain.NewResolutionError(domain.ErrorKindTransient, domain.StageFetch,
		fmt.Errorf("download failed after %d attempts: %w", constants.DefaultRetryCount, lastErr))
}

func (d *Downloader) downloadOnce(ctx context.Context, sourceURL, destDir string, method Method, progress ProgressFunc) (string, error) {
	u := fmt.Sprintf("%s/retrieve?url=%s&method=%s&format=audio",
		d.BaseURL, url.QueryEscape(sourceURL), method)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageFetch, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.NewResolutionError(domain.ErrorKindCancelled, domain.StageFetch, ctx.Err())
		}
		return "", domain.NewResolutionError(domain.ErrorKindTransient, domain.StageFetch,
			fmt.Errorf("retrieval backend unreachable: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// proceed
	case resp.StatusCode == http.StatusForbidden:
		return "", errPlatformBlock
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", domain.NewResolutionError(domain.ErrorKindTransient, domain.StageFetch,
			fmt.Errorf("retrieval backend returned status %d", resp.StatusCode))
	default:
		return "", domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageFetch,
			fmt.Errorf("retrieval backend returned status %d", resp.StatusCode))
	}

	ext := extFromContentType(resp.Header.Get("Content-Type"))
	tmp, err := os.CreateTemp(destDir, "fetch-*"+ext)
	if err != nil {
		return "", domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageFetch, err)
	}

	written, copyErr := io.Copy(tmp, &progressReader{
		r:        resp.Body,
		total:    resp.ContentLength,
		progress: progress,
	})
	closeErr := tmp.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if ctx.Err() != nil {
			return "", domain.NewResolutionError(domain.ErrorKindCancelled, domain.StageFetch, ctx.Err())
		}
		return "", domain.NewResolutionError(domain.ErrorKindTransient, domain.StageFetch,
			fmt.Errorf("stream interrupted after %d bytes: %w", written, errors.Join(copyErr, closeErr)))
	}
	if written == 0 {
		os.Remove(tmp.Name())
		return "", domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageFetch,
			errors.New("retrieval backend returned an empty stream"))
	}

	if progress != nil {
		progress(1.0)
	}
	return tmp.Name(), nil
}

func extFromContentType(ct string) string {
	switch ct {
	case constants.MimeTypeMP3:
		return constants.ExtMP3
	case constants.MimeTypeFLAC:
		return constants.ExtFLAC
	case constants.MimeTypeM4A, "video/mp4":
		return constants.ExtMP4
	default:
		return constants.ExtMP4
	}
}

// progressReader reports the cumulative read fraction against a known total.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.progress != nil && p.total > 0 && n > 0 {
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		p.progress(frac)
	}
	return n, err
}
