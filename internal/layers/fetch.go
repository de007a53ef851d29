package layers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Fetcher retrieves a dataset and classifies the result. Implementations
// report every failure as an Outcome and never return errors.
type Fetcher interface {
	Fetch(ctx context.Context, location string) Outcome
}

// Defaults for HTTPFetcher.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBytes     = 64 << 20
)

// HTTPFetcherOptions configures an HTTPFetcher.
type HTTPFetcherOptions struct {
	// Base resolves relative locations: an http(s) URL or a directory.
	Base     string
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
	Logger   *zap.Logger
}

// HTTPFetcher loads datasets over HTTP(S) or from the local filesystem.
type HTTPFetcher struct {
	base     string
	timeout  time.Duration
	maxBytes int64
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPFetcher creates a fetcher.
func NewHTTPFetcher(opts HTTPFetcherOptions) *HTTPFetcher {
	f := &HTTPFetcher{
		base:     opts.Base,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		client:   opts.Client,
		logger:   opts.Logger,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Fetch retrieves location, bounded by the fetcher's timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target, isURL, err := f.resolve(location)
	if err != nil {
		return Fail(KindNetwork, "invalid location %q: %v", location, err)
	}

	var body []byte
	if isURL {
		body, err = f.get(ctx, target)
	} else {
		body, err = f.read(ctx, target)
	}
	if err != nil {
		f.logger.Debug("fetch failed", zap.String("location", target), zap.Error(err))
		return Fail(KindNetwork, "%s: %v", location, err)
	}

	if !json.Valid(body) {
		return Fail(KindParse, "%s: body is not valid JSON", location)
	}
	return Success(json.RawMessage(body))
}

// resolve turns a location into an absolute URL or a file path.
func (f *HTTPFetcher) resolve(location string) (string, bool, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", false, err
	}
	switch u.Scheme {
	case "http", "https":
		return location, true, nil
	case "file":
		return u.Path, false, nil
	case "":
	default:
		return "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if strings.HasPrefix(f.base, "http://") || strings.HasPrefix(f.base, "https://") {
		base, err := url.Parse(f.base)
		if err != nil {
			return "", false, err
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		return base.ResolveReference(u).String(), true, nil
	}
	if filepath.IsAbs(location) || f.base == "" {
		return location, false, nil
	}
	return filepath.Join(f.base, filepath.FromSlash(location)), false, nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return f.readAll(resp.Body)
}

func (f *HTTPFetcher) read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}
	defer file.Close()
	return f.readAll(file)
}

func (f *HTTPFetcher) readAll(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", f.maxBytes)
	}
	return body, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
