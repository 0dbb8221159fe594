package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
)

// uploadStage is the terminal stage for operations carrying files. The body
// follows the GraphQL multipart request format: an "operations" part with
// the file variables set to null, a "map" part binding each file part to
// its variable path, then one part per file.
type uploadStage struct {
	engine *HTTPEngine
	files  []File
}

func (s *uploadStage) Intercept(ctx context.Context, req *Request, _ Chain) (*Response, error) {
	body, contentType, err := multipartBody(req, s.files)
	if err != nil {
		return nil, err
	}
	// Servers with CSRF prevention reject multipart requests without it.
	req.Header.Set("Apollo-Require-Preflight", "true")
	return s.engine.post(ctx, req, body, contentType)
}

func multipartBody(req *Request, files []File) (io.Reader, string, error) {
	variables := make(map[string]any, len(req.Variables)+len(files))
	for k, v := range req.Variables {
		variables[k] = v
	}

	counts := make(map[string]int)
	for _, f := range files {
		counts[f.FieldName]++
	}

	fileMap := make(map[string][]string, len(files))
	seen := make(map[string]int)
	for i, f := range files {
		path := "variables." + f.FieldName
		if counts[f.FieldName] > 1 {
			idx := seen[f.FieldName]
			seen[f.FieldName]++
			path += "." + strconv.Itoa(idx)
			if idx == 0 {
				variables[f.FieldName] = make([]any, counts[f.FieldName])
			}
		} else {
			variables[f.FieldName] = nil
		}
		fileMap[strconv.Itoa(i)] = []string{path}
	}

	operations, err := json.Marshal(payload{
		Query:         req.Query,
		OperationName: req.OperationName,
		Variables:     variables,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal operations: %w", err)
	}
	mapping, err := json.Marshal(fileMap)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal file map: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("operations", string(operations)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("map", string(mapping)); err != nil {
		return nil, "", err
	}

	for i, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%d"; filename=%q`, i, f.OriginalName))
		mimeType := f.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h.Set("Content-Type", mimeType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Data); err != nil {
			return nil, "", fmt.Errorf("failed to read file %s: %w", f.OriginalName, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}
