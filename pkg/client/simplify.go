package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// SimplifyText posts text to /api/simplify-text.
func (c *Client) SimplifyText(ctx context.Context, text string) (*lab.SimplifyResponse, error) {
	body, err := json.Marshal(lab.SimplifyTextRequest{Text: text})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode request")
	}
	var resp lab.SimplifyResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/simplify-text",
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SimplifyFile uploads r as the multipart "file" field of /api/simplify. An
// empty contentType lets the server sniff the type.
func (c *Client) SimplifyFile(ctx context.Context, filename, contentType string, r io.Reader) (*lab.SimplifyResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "create multipart part")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "read upload")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "close multipart body")
	}

	var resp lab.SimplifyResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/simplify",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches /api/health. A degraded service answers 503; the decoded
// body is still returned alongside the error.
func (c *Client) Health(ctx context.Context) (*lab.HealthResponse, error) {
	resp, err := c.send(ctx, request{method: http.MethodGet, path: "/api/health"})
	if resp == nil {
		return nil, err
	}
	var health lab.HealthResponse
	if uerr := json.Unmarshal(resp.body, &health); uerr != nil || health.Status == "" {
		if err != nil {
			return nil, err
		}
		return nil, errors.Wrap(uerr, errors.ErrCodeSerialization, "decode health response")
	}
	if resp.status == http.StatusServiceUnavailable {
		return &health, errors.New(errors.ErrCodeServiceUnavailable, "service degraded")
	}
	return &health, err
}

// ListTests fetches the knowledge base listing.
func (c *Client) ListTests(ctx context.Context) (*lab.KBTestList, error) {
	var list lab.KBTestList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/kb/tests"}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetTest resolves name, or any synonym, to its knowledge base entry.
func (c *Client) GetTest(ctx context.Context, name string) (*lab.KBTestDTO, error) {
	var dto lab.KBTestDTO
	path := "/api/kb/tests/" + url.PathEscape(name)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}
