package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"neuroreverse/internal/upload"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type formFiles struct {
	field string
	files []upload.File
}

type analysisRequest struct {
	StartAnalysis bool `json:"start_analysis"`
}

type analysisResponse struct {
	Message string `json:"message"`
}

// UploadBenchmark sends both selections to POST /upload/.
func (c *Client) UploadBenchmark(ctx context.Context, userFiles, competitorFiles []upload.File) error {
	const op = "upload benchmark files"
	req, err := c.multipartRequest(ctx, "/upload/", []formFiles{
		{field: "user_files", files: userFiles},
		{field: "competitor_files", files: competitorFiles},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = c.do(req, op)
	return err
}

// StartAnalysis triggers the comparison and returns its message.
func (c *Client) StartAnalysis(ctx context.Context) (string, error) {
	var out analysisResponse
	if err := c.postJSON(ctx, "start analysis", "/response", analysisRequest{StartAnalysis: true}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) multipartRequest(ctx context.Context, path string, groups []formFiles) (*http.Request, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, g := range groups {
		for _, f := range g.files {
			if err := writeFilePart(w, g.field, f); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func writeFilePart(w *multipart.Writer, field string, f upload.File) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(f.Name)))
	typ := f.MIME
	if typ == "" {
		typ = "application/octet-stream"
	}
	h.Set("Content-Type", typ)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part for %s: %w", f.Name, err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return nil
}
