package app

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

type formFile struct {
	field       string
	name        string
	contentType string
	content     io.Reader
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    timeout,
			DisableCompression: true,
		},
	}
}

// prepareMultipartFile encodes the fields and the file as a multipart form
// and returns the body with its content type.
func prepareMultipartFile(fields map[string]string, file formFile) (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("can not write field %s: %w", name, err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
	contentType := file.contentType
	if contentType == "" {
		contentType = defaultContentType
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("can not create form file: %w", err)
	}
	if _, err := io.Copy(part, file.content); err != nil {
		return nil, "", fmt.Errorf("can not copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// readResponse reads the body and turns non-2xx answers into ErrRemoteStatus.
func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error during body response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, fmt.Errorf("%w: status %d", ErrRemoteStatus, resp.StatusCode)
	}
	return body, nil
}
