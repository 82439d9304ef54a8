// Package httpx holds the JSON-over-HTTP plumbing shared by the plain HTTP
// adapters, and maps transport failures onto domain.CollaboratorError.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// Classify wraps err as a CollaboratorError, marking rate limits, upstream
// 5xx, timeouts and connection failures as transient.
func Classify(collaborator, op string, status int, err error) *domain.CollaboratorError {
	return &domain.CollaboratorError{
		Collaborator: collaborator,
		Op:           op,
		StatusCode:   status,
		Transient:    isTransient(status, err),
		Err:          err,
	}
}

func isTransient(status int, err error) bool {
	if status != 0 {
		return domain.IsTransientStatus(status)
	}
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Request describes a JSON call.
type Request struct {
	Collaborator string
	Op           string
	Method       string
	URL          string
	Headers      map[string]string

	// Body is marshalled as JSON when non-nil.
	Body any
}

// DoJSON sends req and decodes a 200 response into out. Non-200 responses
// and transport failures come back as *domain.CollaboratorError.
func DoJSON(ctx context.Context, client *http.Client, req Request, out any) error {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", req.Collaborator, err)
		}
		body = bytes.NewReader(jsonBody)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", req.Collaborator, err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Classify(req.Collaborator, req.Op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return Classify(req.Collaborator, req.Op, resp.StatusCode, fmt.Errorf("failed to read response: %w", readErr))
		}
		return Classify(req.Collaborator, req.Op, resp.StatusCode, errors.New(string(bytes.TrimSpace(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.OutputShapeError{Collaborator: req.Collaborator, Reason: "decode response: " + err.Error()}
	}
	return nil
}
