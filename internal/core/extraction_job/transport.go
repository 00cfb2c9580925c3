package extraction_job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport delivers one document to the extraction service.
//
// onSent must be called once the request body has been handed to the network,
// before the response arrives. Returned errors should be *JobError; anything
// else is classified by the controller.
type Transport interface {
	Submit(ctx context.Context, doc *Document, onSent func()) (*Response, error)
}

// Response is the decoded success body of POST /extract.
type Response struct {
	Text   string
	Mode   string
	Status int
}

const (
	extractPath     = "/extract"
	formField       = "pdf"
	maxResponseSize = 64 << 20
)

// HTTPTransport talks to the extraction service over multipart HTTP.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	token    string
	logger   *zap.Logger
}

type TransportOption func(*HTTPTransport)

// WithHTTPClient overrides the default client (5 minute timeout).
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithBearerToken sets the Authorization header on every request.
func WithBearerToken(token string) TransportOption {
	return func(t *HTTPTransport) { t.token = token }
}

func WithTransportLogger(l *zap.Logger) TransportOption {
	return func(t *HTTPTransport) { t.logger = l }
}

// NewHTTPTransport targets baseURL + "/extract".
func NewHTTPTransport(baseURL string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: strings.TrimRight(baseURL, "/") + extractPath,
		client:   &http.Client{Timeout: 5 * time.Minute},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Submit(ctx context.Context, doc *Document, onSent func()) (*Response, error) {
	reqID := uuid.NewString()
	start := time.Now()

	body, contentType, err := encodeMultipart(doc)
	if err != nil {
		t.logger.Error("extract.http.encode_error", zap.String("req_id", reqID), zap.Error(err))
		return nil, newJobError(KindTransport, MsgTransportFailure, err)
	}

	sent := &sentReader{r: bytes.NewReader(body), size: len(body), onDone: onSent}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, sent)
	if err != nil {
		t.logger.Error("extract.http.build_request_error", zap.String("req_id", reqID), zap.Error(err))
		return nil, newJobError(KindTransport, MsgTransportFailure, err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	t.logger.Info("extract.http.request",
		zap.String("req_id", reqID),
		zap.String("url", t.endpoint),
		zap.String("file", doc.Filename),
		zap.Int("content_length", len(body)),
	)

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("extract.http.send_error",
			zap.String("req_id", reqID),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, newJobError(KindCancelled, MsgCancelled, err)
		}
		return nil, newJobError(KindTransport, MsgTransportFailure, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warn("extract.http.response_body_close_error", zap.String("req_id", reqID), zap.Error(err))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, newJobError(KindCancelled, MsgCancelled, err)
		}
		return nil, newJobError(KindTransport, MsgTransportFailure, fmt.Errorf("read response: %w", err))
	}

	t.logger.Info("extract.http.response",
		zap.String("req_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode/100 != 2 {
		return nil, decodeServerError(resp.StatusCode, raw)
	}

	var payload struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &JobError{Kind: KindServerUnparseable, Message: MsgServerFailure, Status: resp.StatusCode, Cause: err}
	}
	return &Response{Text: payload.Text, Mode: payload.Mode, Status: resp.StatusCode}, nil
}

// decodeServerError relays a structured {"error": "..."} body verbatim and
// falls back to a generic message otherwise.
func decodeServerError(status int, raw []byte) *JobError {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return &JobError{Kind: KindServer, Message: payload.Error, Status: status}
	}
	return &JobError{
		Kind:    KindServerUnparseable,
		Message: MsgServerFailure,
		Status:  status,
		Cause:   fmt.Errorf("non-2xx status: %d", status),
	}
}

func encodeMultipart(doc *Document) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formField, doc.Filename))
	h.Set("Content-Type", pdfContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// sentReader calls onDone once the whole body has been consumed by the client.
type sentReader struct {
	r      io.Reader
	size   int
	read   int
	onDone func()
	once   sync.Once
}

func (s *sentReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.read += n
	if s.read >= s.size || err == io.EOF {
		s.once.Do(func() {
			if s.onDone != nil {
				s.onDone()
			}
		})
	}
	return n, err
}
