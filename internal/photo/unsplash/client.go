package unsplash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/kitbuilder587/imagen-bot/internal/photo"
)

const (
	DefaultBaseURL = "https://api.unsplash.com"
	randomPath     = "/photos/random"

	maxSearchBytes = 1 << 20
	maxImageBytes  = 25 << 20
)

var errNoImageURL = errors.New("no image url in response")

type Config struct {
	AccessKey   string
	BaseURL     string
	Timeout     time.Duration
	Orientation string
	// Transport is shared by both requests; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Client holds configuration only, so one instance can serve any number
// of concurrent RandomImage calls.
type Client struct {
	accessKey   string
	endpoint    string
	orientation string
	search      *http.Client
	download    *http.Client
	logger      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Orientation == "" {
		cfg.Orientation = photo.OrientationSquarish
	}

	return &Client{
		accessKey:   cfg.AccessKey,
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + randomPath,
		orientation: cfg.Orientation,
		search:      &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		download:    &http.Client{Transport: cfg.Transport},
		logger:      logger,
	}
}

func (c *Client) RandomImage(ctx context.Context, prompt string) (*photo.Image, error) {
	req := photo.NewSearchRequest(prompt, c.orientation, c.accessKey)

	imageURL, err := c.searchPhoto(ctx, req)
	if err != nil {
		return nil, err
	}

	return c.downloadImage(ctx, imageURL)
}

func (c *Client) searchPhoto(ctx context.Context, req photo.SearchRequest) (string, error) {
	u, err := req.URL(c.endpoint)
	if err != nil {
		return "", photo.InvalidResponse(fmt.Errorf("build url: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", photo.InvalidResponse(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Version", "v1")

	c.logger.Debug("photo search request",
		zap.String("url", redact(u)),
		zap.Any("headers", httpReq.Header),
	)

	resp, err := c.search.Do(httpReq)
	if err != nil {
		err = redactURLError(err)
		c.logger.Warn("photo search transport failed", zap.Error(err))
		return "", photo.NetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBytes+1))
	if err != nil {
		return "", photo.NetworkError(fmt.Errorf("read response: %w", err))
	}
	if len(body) > maxSearchBytes {
		return "", photo.InvalidResponse(fmt.Errorf("search response larger than %d bytes", maxSearchBytes))
	}

	c.logger.Debug("photo search response",
		zap.Int("status", resp.StatusCode),
		zap.Any("headers", resp.Header),
		zap.ByteString("body", body),
	)

	imageURL, err := parseSearchResponse(body)
	if err != nil {
		c.logger.Info("photo search rejected",
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return "", err
	}
	return imageURL, nil
}

func (c *Client) downloadImage(ctx context.Context, imageURL string) (*photo.Image, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, photo.InvalidResponse(fmt.Errorf("create image request: %w", err))
	}

	resp, err := c.download.Do(httpReq)
	if err != nil {
		c.logger.Warn("image download transport failed", zap.Error(err))
		return nil, photo.NetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, photo.InvalidResponse(fmt.Errorf("image download status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, photo.InvalidResponse(fmt.Errorf("read image: %w", err))
	}
	if len(data) > maxImageBytes {
		return nil, photo.InvalidResponse(fmt.Errorf("image larger than %d bytes", maxImageBytes))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.logger.Info("failed to decode image", zap.String("url", imageURL), zap.Error(err))
		return nil, photo.InvalidResponse(fmt.Errorf("decode image: %w", err))
	}

	bounds := img.Bounds()
	c.logger.Debug("image downloaded",
		zap.String("format", format),
		zap.Int("bytes", len(data)),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
	)

	return &photo.Image{
		Data:      data,
		Format:    format,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SourceURL: imageURL,
	}, nil
}

// parseSearchResponse picks the regular-size image URL out of a
// /photos/random body. Fields are decoded one by one so an odd "errors"
// value does not hide a usable "urls" object.
func parseSearchResponse(body []byte) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		if err == nil {
			err = errors.New("response is not a json object")
		}
		return "", photo.InvalidResponse(fmt.Errorf("unmarshal response: %w", err))
	}

	if raw, ok := obj["errors"]; ok {
		var messages []string
		// an empty list is still an error report
		if err := json.Unmarshal(raw, &messages); err == nil && messages != nil {
			return "", photo.APIError(strings.Join(messages, ", "))
		}
	}

	raw, ok := obj["urls"]
	if !ok {
		return "", photo.InvalidResponse(errNoImageURL)
	}
	var urls struct {
		Regular *string `json:"regular"`
	}
	if err := json.Unmarshal(raw, &urls); err != nil || urls.Regular == nil {
		return "", photo.InvalidResponse(errNoImageURL)
	}

	u, err := url.Parse(*urls.Regular)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", photo.InvalidResponse(fmt.Errorf("bad image url %q", *urls.Regular))
	}
	return u.String(), nil
}

// redactURLError keeps the access key out of error text, which ends up
// in logs, history rows and chat messages.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		return &url.Error{Op: uerr.Op, URL: "", Err: uerr.Err}
	}
	return &url.Error{Op: uerr.Op, URL: redact(u), Err: uerr.Err}
}

func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("client_id") {
		q.Set("client_id", "REDACTED")
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}
