// Package netx holds the low-level direct-to-storage transfer used by the
// upload pipeline: a multipart form POST against the host named in an
// upload ticket. The application server never proxies the bytes.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// PostFileMultipart submits one file to url as a multipart form. The extra
// form fields (object key, policy, signature, access id) are written before
// the file part, which storage hosts require to be the final part. A non-2xx
// response is returned as an error including the response body, which
// storage hosts use for a human-readable rejection reason.
func PostFileMultipart(ctx context.Context, client *http.Client, url string, fields map[string]string, fileName string, file io.Reader) error {
	if client == nil {
		client = &http.Client{}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return fmt.Errorf("writing file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
