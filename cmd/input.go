package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spiffcs/gqlc/internal/engine"
)

// readDocument returns the GraphQL document at path, or stdin when path is "-".
func readDocument(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", path, err)
	}

	doc := strings.TrimSpace(string(data))
	if doc == "" {
		return "", fmt.Errorf("document %s is empty", path)
	}
	return doc, nil
}

// parseVariables merges a JSON object with key=value pairs; pairs win. A pair
// value that is valid JSON is used as such, anything else is a string.
func parseVariables(varsJSON string, pairs []string) (map[string]any, error) {
	vars := make(map[string]any)
	if varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &vars); err != nil {
			return nil, fmt.Errorf("invalid --vars: %w", err)
		}
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		vars[key] = value
	}

	if len(vars) == 0 {
		return nil, nil
	}
	return vars, nil
}

// readFiles loads field=path pairs for a multipart upload.
func readFiles(pairs []string) ([]engine.File, error) {
	files := make([]engine.File, 0, len(pairs))
	for _, pair := range pairs {
		field, path, ok := strings.Cut(pair, "=")
		if !ok || field == "" || path == "" {
			return nil, fmt.Errorf("invalid --file %q: expected field=path", pair)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %s: %w", path, err)
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		files = append(files, engine.File{
			FieldName:    field,
			OriginalName: filepath.Base(path),
			MimeType:     mimeType,
			Data:         bytes.NewReader(data),
		})
	}
	return files, nil
}
