// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// MultipartBody is a pre-encoded multipart/form-data payload. The client
// sends it unmodified with its own boundary content type.
type MultipartBody struct {
	data        []byte
	contentType string
}

// FilePart is one file field of a multipart body.
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// NewMultipartBody encodes fields and files into a multipart body.
func NewMultipartBody(fields map[string]string, files ...FilePart) (*MultipartBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("writing field %q: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, fmt.Errorf("creating file part %q: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("copying file part %q: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}
	return &MultipartBody{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

// ContentType returns the multipart content type including the boundary.
func (b *MultipartBody) ContentType() string { return b.contentType }

// Len returns the encoded size in bytes.
func (b *MultipartBody) Len() int { return len(b.data) }
