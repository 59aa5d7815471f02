// internal/lfsapi/client.go
package lfsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"lfspull/internal/errors"
)

const batchPath = "/info/lfs/objects/batch"

// Client speaks the subset of the git-lfs batch API a pull needs: one
// negotiation per object, one authenticated GET per granted action.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a batch API client. Deadlines come from the caller's
// context, not from the client.
func New(logger *zap.Logger) *Client {
	return NewWithClient(&http.Client{}, logger)
}

// NewWithClient creates a batch API client on a caller-supplied HTTP
// client, for callers that bring their own transport trust.
func NewWithClient(httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Negotiate asks the server for a download action for obj. The returned
// object carries the oid the downloaded bytes must be verified against.
func (c *Client) Negotiate(ctx context.Context, remote, token string, obj BatchObject) (*BatchObject, *Action, error) {
	payload, err := json.Marshal(batchRequest{
		Operation: "download",
		Transfers: []string{"basic"},
		Ref:       batchRef{Name: "refs/heads/main"},
		Objects:   []BatchObject{obj},
		HashAlgo:  "sha256",
	})
	if err != nil {
		return nil, nil, errors.Wrap(errors.Request, "could not encode batch request", err)
	}

	endpoint, err := withAuth(remote+batchPath, token)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, nil, errors.Wrap(errors.Request, "could not build batch request", err)
	}
	req.Header.Set("Accept", MediaType)
	req.Header.Set("Content-Type", MediaType)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(errors.Request, "batch request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, nil, errors.New(errors.AccessDenied, "remote server responded with 401 or 403")
	}
	if !okStatus(resp.StatusCode) {
		c.logger.Warn("batch request rejected",
			zap.Int("status", resp.StatusCode))
		return nil, nil, errors.New(errors.ResponseNotOkay, "remote server responded with not-okay code: "+resp.Status)
	}

	body, err := decodedBody(resp)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	var parsed batchResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, nil, errors.Wrap(errors.InvalidResponse, "could not decode batch response", err)
	}

	if len(parsed.Objects) == 0 {
		return nil, nil, errors.New(errors.RemoteFileNotFound, "empty object list response from lfs server")
	}
	object := parsed.Objects[0]
	action, ok := object.Actions["download"]
	if !ok || action == nil {
		return nil, nil, errors.New(errors.RemoteFileNotFound, "no download action received from lfs server")
	}
	return &object.BatchObject, action, nil
}

// Fetch opens the byte stream behind a negotiated action, applying the
// server-supplied headers verbatim. The caller owns the returned body.
func (c *Client) Fetch(ctx context.Context, action *Action, token string) (io.ReadCloser, error) {
	target, err := withAuth(action.Href, token)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(errors.Request, "could not build download request", err)
	}
	for key, value := range action.Header {
		if strings.ContainsAny(value, "\r\n") {
			return nil, errors.New(errors.InvalidHeaderValue, "action header "+key+" carries line breaks")
		}
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.Request, "download request failed", err)
	}
	if !okStatus(resp.StatusCode) {
		resp.Body.Close()
		return nil, errors.New(errors.InvalidResponse, "download failed: "+resp.Status)
	}
	return resp.Body, nil
}

func okStatus(code int) bool {
	return code >= 200 && code < 300
}

// withAuth embeds the token as oauth2 basic credentials in the URL, the
// form git-lfs servers accept for token auth.
func withAuth(raw, token string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(errors.UrlParsing, "could not parse url: "+raw, err)
	}
	if token != "" {
		parsed.User = url.UserPassword("oauth2", token)
	}
	return parsed.String(), nil
}

// decodedBody unwraps a gzip-encoded response body. Plain bodies pass
// through untouched.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return resp.Body, nil
	}
	reader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidResponse, "could not decode gzip response body", err)
	}
	return reader, nil
}
