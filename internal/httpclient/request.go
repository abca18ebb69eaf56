package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrDecodeBody is returned when a successful response does not decode into the result.
var ErrDecodeBody = errors.New("httpclient: failed to decode response body")

// Request builds and executes one HTTP call.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	// SetBody accepts []byte, string, io.Reader or a value to JSON encode.
	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetHeaders(headers map[string]string) Request
	SetQueryParam(key, value string) Request
	// SetResult decodes a JSON body into result.
	SetResult(result any) Request
}

// Response wraps http.Response with the already read body.
type Response struct {
	*http.Response
	body   []byte
	result any
}

// Body returns the response body as bytes.
func (r *Response) Body() []byte {
	return r.body
}

// String returns the response body as string.
func (r *Response) String() string {
	return string(r.body)
}

// IsError returns true if the status code indicates an error (>= 400).
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// IsSuccess returns true if the status code indicates success (< 400).
func (r *Response) IsSuccess() bool {
	return r.StatusCode < 400
}

// Result returns the decoded result, nil when nothing was decoded.
func (r *Response) Result() any {
	return r.result
}

type requestBuilder struct {
	client  *InstrumentedClient
	opts    *RequestOptions
	headers map[string]string
	query   url.Values
	body    any
	result  any
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, path)
}

func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[http.CanonicalHeaderKey(key)] = value
	return r
}

func (r *requestBuilder) SetHeaders(headers map[string]string) Request {
	for k, v := range headers {
		r.SetHeader(k, v)
	}
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) url(path string) string {
	full := path
	if base := r.client.baseURL; base != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		full = strings.TrimSuffix(base, "/")
		if path != "" {
			full += "/" + strings.TrimPrefix(path, "/")
		}
	}
	if len(r.query) == 0 {
		return full
	}
	sep := "?"
	if strings.Contains(full, "?") {
		sep = "&"
	}
	return full + sep + r.query.Encode()
}

// encodeBody returns the body reader and, for JSON values, the encoded bytes.
func (r *requestBuilder) encodeBody() (io.Reader, []byte, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, nil, nil
	case []byte:
		return bytes.NewReader(b), b, nil
	case string:
		return strings.NewReader(b), []byte(b), nil
	case io.Reader:
		return b, nil, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
		return bytes.NewReader(raw), raw, nil
	}
}

func (r *requestBuilder) execute(ctx context.Context, method, path string) (resp *Response, err error) {
	c := r.client
	ctx, span := c.tracer.Start(ctx, "http.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("provider", c.providerName),
		),
	)
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		r.record(ctx, status, err == nil && status < 400, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	bodyReader, rawBody, err := r.encodeBody()
	if err != nil {
		return nil, err
	}
	if rawBody != nil && c.traceBodies[TraceRequest] {
		span.AddEvent("request.body", trace.WithAttributes(
			attribute.String("http.request_body", string(rawBody)),
		))
	}

	req, err := http.NewRequestWithContext(ctx, method, r.url(path), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if r.opts.logHeaders {
		r.traceHeaders(span, req.Header)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		annotateTransportError(span, err)
		return nil, err
	}
	status = httpResp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if c.traceBodies[TraceResponse] {
		span.AddEvent("response.body", trace.WithAttributes(
			attribute.String("http.response_body", string(body)),
		))
	}

	resp = &Response{Response: httpResp, body: body}

	if h := r.opts.responseErrorHandler; h != nil {
		if herr := h(status, body); herr != nil {
			return resp, herr
		}
	}

	// A success body that does not decode is an error; an error body is
	// decoded best effort.
	if r.result != nil && len(body) > 0 {
		if derr := json.Unmarshal(body, r.result); derr != nil {
			if resp.IsSuccess() {
				return resp, fmt.Errorf("%w: %v", ErrDecodeBody, derr)
			}
		} else {
			resp.result = r.result
		}
	}

	return resp, nil
}

func annotateTransportError(span trace.Span, err error) {
	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
}

// record adds the request to the counter and latency histogram.
func (r *requestBuilder) record(ctx context.Context, status int, success bool, elapsed time.Duration) {
	attrs := make([]attribute.KeyValue, 0, 3+len(r.opts.labels))
	attrs = append(attrs,
		attribute.String("provider", r.client.providerName),
		attribute.Bool("success", success),
		attribute.String("status_class", statusClass(status)),
	)
	for _, l := range r.opts.labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}

	set := metric.WithAttributes(attrs...)
	r.client.inst.requests.Add(ctx, 1, set)
	r.client.inst.duration.Record(ctx, elapsed.Seconds(), set)
}

// statusClass buckets a status code as 2xx, 4xx, ... or "none" when no
// response arrived.
func statusClass(status int) string {
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

func (r *requestBuilder) traceHeaders(span trace.Span, headers http.Header) {
	attrs := make([]attribute.KeyValue, 0, len(headers))
	for k, values := range headers {
		v := ""
		if len(values) > 0 {
			v = values[0]
		}
		if r.opts.redactHeaders[k] {
			v = "*****"
		}
		attrs = append(attrs, attribute.String("http.request.header."+strings.ToLower(k), v))
	}
	if len(attrs) > 0 {
		span.AddEvent("request.headers", trace.WithAttributes(attrs...))
	}
}
