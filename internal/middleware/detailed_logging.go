package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"salesbridge/internal/httputil"
	"salesbridge/internal/privacy"
	"salesbridge/internal/service"
	"salesbridge/internal/tracing"

	"github.com/sirupsen/logrus"
)

// DetailedLoggingConfig selects which parts of a request and response get
// logged at debug level.
type DetailedLoggingConfig struct {
	LogRequestHeaders  bool     `json:"log_request_headers"`
	LogResponseHeaders bool     `json:"log_response_headers"`
	LogRequestBody     bool     `json:"log_request_body"`
	LogResponseBody    bool     `json:"log_response_body"`
	MaxBodySize        int      `json:"max_body_size"`
	SensitiveHeaders   []string `json:"sensitive_headers"`
	SkipEndpoints      []string `json:"skip_endpoints"`
}

// DefaultDetailedLoggingConfig logs request headers only. Bodies stay off
// until explicitly enabled since webhook payloads contain customer data.
func DefaultDetailedLoggingConfig() DetailedLoggingConfig {
	return DetailedLoggingConfig{
		LogRequestHeaders:  true,
		LogResponseHeaders: false,
		LogRequestBody:     false,
		LogResponseBody:    false,
		MaxBodySize:        1024,
		SensitiveHeaders: []string{
			"authorization", "x-api-key", "x-dpk-secret",
			"asaas-access-token", "access_token",
			"cookie", "set-cookie", "x-auth-token",
		},
		SkipEndpoints: []string{
			"/metrics", "/health", "/ping",
		},
	}
}

const maskedValue = "***MASKED***"

// DetailedLoggingMiddleware emits one debug entry per request and, when
// response capture is enabled, one per response.
func DetailedLoggingMiddleware(logger *logrus.Logger, config DetailedLoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			requestInfo := tracing.GetRequestInfo(r.Context())
			config.logRequest(logger, r, requestInfo)

			if !config.LogResponseBody && !config.LogResponseHeaders {
				next.ServeHTTP(w, r)
				return
			}

			capture := &responseCaptureWrapper{
				ResponseWriter: w,
				body:           bytes.NewBuffer(nil),
				headers:        make(http.Header),
			}
			next.ServeHTTP(capture, r)
			config.logResponse(logger, capture, requestInfo)
		})
	}
}

func (c DetailedLoggingConfig) skips(path string) bool {
	for _, skip := range c.SkipEndpoints {
		if strings.Contains(path, skip) {
			return true
		}
	}
	return false
}

func (c DetailedLoggingConfig) logRequest(logger *logrus.Logger, r *http.Request, requestInfo *tracing.RequestInfo) {
	fields := logrus.Fields{
		service.LogFieldRequestID: requestInfo.RequestID,
		service.LogFieldTraceID:   requestInfo.TraceID,
		service.LogFieldMethod:    r.Method,
		service.LogFieldURL:       r.URL.String(),
		service.LogFieldRemoteIP:  httputil.GetClientIP(r),
		"content_length":          r.ContentLength,
		"protocol":                r.Proto,
	}

	if c.LogRequestHeaders {
		fields["request_headers"] = c.maskHeaders(r.Header)
	}

	if c.LogRequestBody && isLoggableContentType(r.Header.Get("Content-Type")) &&
		r.ContentLength > 0 && r.ContentLength <= int64(c.MaxBodySize) {
		if body, err := io.ReadAll(r.Body); err == nil {
			// Hand the handler a fresh reader over the consumed body.
			r.Body = io.NopCloser(bytes.NewReader(body))
			fields["request_body"] = maskBody(string(body))
		}
	}

	logger.WithFields(fields).Debug("Detailed request logging")
}

func (c DetailedLoggingConfig) logResponse(logger *logrus.Logger, capture *responseCaptureWrapper, requestInfo *tracing.RequestInfo) {
	fields := logrus.Fields{
		service.LogFieldRequestID: requestInfo.RequestID,
		service.LogFieldTraceID:   requestInfo.TraceID,
		"status_code":             capture.statusCode,
		"response_size":           capture.body.Len(),
	}

	if c.LogResponseHeaders {
		fields["response_headers"] = c.maskHeaders(capture.headers)
	}

	if c.LogResponseBody && capture.body.Len() > 0 {
		if capture.body.Len() <= c.MaxBodySize {
			fields["response_body"] = maskBody(capture.body.String())
		} else {
			fields["response_body"] = fmt.Sprintf("***TRUNCATED*** (size: %d bytes)", capture.body.Len())
		}
	}

	logger.WithFields(fields).Debug("Detailed response logging")
}

// maskHeaders flattens headers into a loggable map, replacing values of
// sensitive headers with a fixed marker.
func (c DetailedLoggingConfig) maskHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if c.isSensitiveHeader(name) {
			out[name] = maskedValue
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func (c DetailedLoggingConfig) isSensitiveHeader(name string) bool {
	for _, sensitive := range c.SensitiveHeaders {
		if strings.EqualFold(sensitive, name) {
			return true
		}
	}
	return false
}

// maskBody runs a body through the privacy masker before it reaches a log line.
func maskBody(body string) interface{} {
	masked := privacy.MaskSensitiveFields(map[string]interface{}{"body": body})
	return masked["body"]
}

// isLoggableContentType restricts body logging to text-based payloads.
func isLoggableContentType(contentType string) bool {
	for _, textType := range []string{
		"application/json",
		"application/xml",
		"text/",
		"application/x-www-form-urlencoded",
	} {
		if strings.Contains(contentType, textType) {
			return true
		}
	}
	return false
}

// responseCaptureWrapper buffers the response while passing it through to the
// real writer.
type responseCaptureWrapper struct {
	http.ResponseWriter
	body       *bytes.Buffer
	headers    http.Header
	statusCode int
}

func (rc *responseCaptureWrapper) Write(data []byte) (int, error) {
	n, err := rc.ResponseWriter.Write(data)
	if err == nil {
		rc.body.Write(data[:n])
	}
	return n, err
}

func (rc *responseCaptureWrapper) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	for name, values := range rc.ResponseWriter.Header() {
		rc.headers[name] = values
	}
	rc.ResponseWriter.WriteHeader(statusCode)
}
