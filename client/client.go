package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRSHost    = "https://rs.qiniu.com"
	defaultIOHost    = "https://iovip.qiniu.com"
	defaultUserAgent = "mediafetch/1.0"

	// statusNoSuchEntry is the store's "object does not exist" status.
	statusNoSuchEntry = 612
)

var tracer = otel.Tracer("client")

type Options struct {
	AccessKey string
	SecretKey string
	RSHost    string
	IOHost    string
	UserAgent string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client talks to the object store's management API. It is immutable after
// New and safe for concurrent use.
type Client struct {
	client    *http.Client
	transport http.RoundTripper
	accessKey string
	secretKey []byte
	rsHost    string
	ioHost    string
	userAgent string
	logger    *slog.Logger
}

// New validates credentials and builds a ready client. No network call is made.
func New(opts Options) (*Client, error) {
	if opts.AccessKey == "" {
		return nil, &domain.ConfigError{Setting: "PIPELINE_QINIU_AK", Err: domain.ErrAuth}
	}
	if opts.SecretKey == "" {
		return nil, &domain.ConfigError{Setting: "PIPELINE_QINIU_SK", Err: domain.ErrAuth}
	}

	if opts.RSHost == "" {
		opts.RSHost = defaultRSHost
	}
	if opts.IOHost == "" {
		opts.IOHost = defaultIOHost
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Client{
		transport: opts.Transport,
		accessKey: opts.AccessKey,
		secretKey: []byte(opts.SecretKey),
		rsHost:    strings.TrimRight(opts.RSHost, "/"),
		ioHost:    strings.TrimRight(opts.IOHost, "/"),
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
	c.client = &http.Client{
		Timeout:   opts.Timeout,
		Transport: c,
	}
	return c, nil
}

// RoundTrip stamps the user agent and the management token on every request.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "QBox "+c.Token(req.URL.EscapedPath(), req.URL.RawQuery))
	return c.transport.RoundTrip(req)
}

// Token signs path[?query] followed by a newline with the secret key.
func (c *Client) Token(path, rawQuery string) string {
	data := path
	if rawQuery != "" {
		data += "?" + rawQuery
	}
	data += "\n"

	mac := hmac.New(sha1.New, c.secretKey)
	mac.Write([]byte(data))
	sign := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return c.accessKey + ":" + sign
}

type errorBody struct {
	Error string `json:"error"`
}

func readError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return http.StatusText(resp.StatusCode)
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	if len(body) > 0 {
		return strings.TrimSpace(string(body))
	}
	return http.StatusText(resp.StatusCode)
}

// Stat returns (nil, nil) when the object does not exist and *domain.StatError
// on any other failure.
func (c *Client) Stat(ctx context.Context, bucket, key string) (*domain.Stat, error) {
	ctx, span := tracer.Start(ctx, "Client.Stat", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	dest := domain.Destination{Bucket: bucket, Key: key}
	span.SetAttributes(attribute.String("destination", dest.String()))

	url := c.rsHost + "/stat/" + mediafetch.EncodeEntry(bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.StatError{Destination: dest, Cause: errors.Wrap(err, "failed to create request")}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.StatError{Destination: dest, Cause: errors.Wrap(err, "failed to perform request")}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case statusNoSuchEntry, http.StatusNotFound:
		return nil, nil
	default:
		err := &domain.StatError{Destination: dest, StatusCode: resp.StatusCode, Cause: errors.New(readError(resp))}
		span.RecordError(err)
		return nil, err
	}

	var stat mediafetch.Stat
	if err := json.NewDecoder(resp.Body).Decode(&stat); err != nil {
		return nil, &domain.StatError{Destination: dest, Cause: errors.Wrap(err, "failed to decode stat")}
	}

	return &domain.Stat{
		Checksum:     stat.Hash,
		Size:         stat.Fsize,
		MimeType:     stat.MimeType,
		LastModified: stat.LastModified().Unix(),
	}, nil
}

// Fetch asks the store to download url into bucket/key server-side and
// returns once the store acknowledges with the object's checksum.
func (c *Client) Fetch(ctx context.Context, url, bucket, key string) (domain.Stat, error) {
	ctx, span := tracer.Start(ctx, "Client.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	dest := domain.Destination{Bucket: bucket, Key: key}
	span.SetAttributes(attribute.String("url", url), attribute.String("destination", dest.String()))

	switch {
	case url == "":
		return domain.Stat{}, &domain.FetchError{Destination: dest, Message: "missing source url"}
	case bucket == "":
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "missing bucket"}
	case key == "":
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "missing key"}
	}

	target := c.ioHost + "/fetch/" + mediafetch.URLSafeBase64(url) + "/to/" + mediafetch.EncodeEntry(bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "failed to reach store", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := &domain.FetchError{URL: url, Destination: dest, StatusCode: resp.StatusCode, Message: readError(resp)}
		span.RecordError(err)
		return domain.Stat{}, err
	}

	var result mediafetch.FetchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "failed to decode response", Cause: err}
	}
	if result.Hash == "" {
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "store returned no checksum"}
	}

	c.logger.Debug("fetch acknowledged", "url", url, "bucket", bucket, "key", key, "elapsed", time.Since(started))

	return domain.Stat{
		Checksum:     result.Hash,
		Size:         result.Fsize,
		MimeType:     result.MimeType,
		LastModified: time.Now().Unix(),
	}, nil
}
