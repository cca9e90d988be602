package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"neuroreverse/internal/upload"
)

type UploadedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}

type UploadResponse struct {
	UploadedFiles []UploadedFile `json:"uploaded_files"`
}

type InitRequest struct {
	URLs      []string `json:"urls"`
	SessionID string   `json:"session_id"`
}

type QueryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// CombinedQuery is the single-call query shape carrying everything the user
// entered as query parameters.
type CombinedQuery struct {
	Message   string
	Files     []string
	URLs      []string
	SessionID string
}

// Answer is the reply of GET /. Response is empty when the service omitted
// it or the body was not JSON.
type Answer struct {
	Response string `json:"response"`
}

// Upload sends files as repeated multipart "files" fields to POST /upload.
func (c *Client) Upload(ctx context.Context, files []upload.File) (UploadResponse, error) {
	const op = "upload files"
	var out UploadResponse
	req, err := c.multipartRequest(ctx, "/upload", []formFiles{{field: "files", files: files}})
	if err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	data, err := c.do(req, op)
	if err != nil {
		return out, err
	}
	return parseUploadResponse(data), nil
}

// Init registers the session with POST /init. The reply is only an ack.
func (c *Client) Init(ctx context.Context, in InitRequest) error {
	if in.URLs == nil {
		in.URLs = []string{}
	}
	return c.postJSON(ctx, "init session", "/init", in, nil)
}

// RegisterQuery posts the query ahead of fetching its answer.
func (c *Client) RegisterQuery(ctx context.Context, in QueryRequest) error {
	return c.postJSON(ctx, "register query", "/query", in, nil)
}

// Ask fetches the answer for a query within a session.
func (c *Client) Ask(ctx context.Context, in QueryRequest) (Answer, error) {
	q := url.Values{}
	q.Set("session_id", in.SessionID)
	q.Set("query", in.Query)
	data, err := c.get(ctx, "ask", "/", q)
	if err != nil {
		return Answer{}, err
	}
	return parseAnswer(data), nil
}

// AskCombined sends message, file names, urls and session id in one GET.
// Lists use the bracketed key form.
func (c *Client) AskCombined(ctx context.Context, in CombinedQuery) (Answer, error) {
	q := url.Values{}
	q.Set("message", in.Message)
	for _, f := range in.Files {
		q.Add("files[]", f)
	}
	for _, u := range in.URLs {
		q.Add("urls[]", u)
	}
	q.Set("sessionId", in.SessionID)
	data, err := c.get(ctx, "ask combined", "/", q)
	if err != nil {
		return Answer{}, err
	}
	return parseAnswer(data), nil
}

// parseUploadResponse treats a reply without a readable file list as an
// upload of nothing in particular.
func parseUploadResponse(data []byte) UploadResponse {
	var out UploadResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return UploadResponse{}
	}
	return out
}

func parseAnswer(data []byte) Answer {
	var a Answer
	if err := json.Unmarshal(data, &a); err != nil {
		return Answer{}
	}
	return a
}
