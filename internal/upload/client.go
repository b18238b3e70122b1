// Package upload sends finalized recordings to a collection endpoint.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jsulmar/yarm/internal/recording"
)

// FieldName is the multipart field carrying the artifact.
const FieldName = "upload_file[filename]"

var (
	ErrTransmission   = errors.New("upload transmission failed")
	ErrServerRejected = errors.New("upload rejected by server")
)

// Result is the normalized outcome of one upload attempt.
type Result struct {
	OK       bool
	Location string
	Error    string
	Err      error
}

// response is the body the collection endpoint answers with.
type response struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Name   string `json:"name,omitempty"`
	Err    string `json:"err,omitempty"`
}

// Client posts artifacts as multipart form data. It never retries.
type Client struct {
	http       *resty.Client
	onComplete func(location string)
}

type Option func(*Client)

// WithCompletionHook sets a function called with the location of every
// successful upload.
func WithCompletionHook(fn func(location string)) Option {
	return func(c *Client) {
		c.onComplete = fn
	}
}

// NewClient creates a client. A zero timeout means no timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send uploads artifact in the background. onResult receives the normalized
// result, then the completion hook runs if the upload succeeded.
func (c *Client) Send(ctx context.Context, artifact recording.Artifact, endpoint string, onResult func(Result)) {
	go func() {
		res := c.Post(ctx, artifact, endpoint)
		if onResult != nil {
			onResult(res)
		}
		if res.OK && c.onComplete != nil {
			c.onComplete(res.Location)
		}
	}()
}

// Post issues a single POST and normalizes whatever comes back.
func (c *Client) Post(ctx context.Context, artifact recording.Artifact, endpoint string) Result {
	slog.Info("Uploading recording", "name", artifact.Name, "size", len(artifact.Blob), "endpoint", endpoint)

	contentType := artifact.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField(FieldName, artifact.Name, contentType, bytes.NewReader(artifact.Blob)).
		Post(endpoint)
	if err != nil {
		return failure(fmt.Errorf("%w: %v", ErrTransmission, err))
	}

	if !resp.IsSuccess() {
		return failure(fmt.Errorf("%w: HTTP %s", ErrTransmission, resp.Status()))
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return failure(fmt.Errorf("%w: invalid response: %v", ErrTransmission, err))
	}

	switch body.Status {
	case "success":
		location := body.URL
		if location == "" {
			location = body.Name
		}
		slog.Info("Upload succeeded", "name", artifact.Name, "location", location)
		return Result{OK: true, Location: location}
	case "fail":
		msg := body.Err
		if msg == "" {
			msg = "unknown error"
		}
		return failure(fmt.Errorf("%w: %s", ErrServerRejected, msg))
	default:
		return failure(fmt.Errorf("%w: unexpected status %q", ErrTransmission, body.Status))
	}
}

func failure(err error) Result {
	slog.Warn("Upload failed", "error", err)
	return Result{OK: false, Error: err.Error(), Err: err}
}
