// file: internals/helpers/multipart.go
package helper

import (
	"fmt"
	"io"
	"mime/multipart"
)

// FirstFile returns the first non-empty file under field, or nil.
func FirstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || form.File == nil {
		return nil
	}
	for _, fh := range form.File[field] {
		if fh != nil && fh.Filename != "" {
			return fh
		}
	}
	return nil
}

// FirstValue returns the first value of a non-file multipart field.
func FirstValue(form *multipart.Form, field string) string {
	if form == nil || form.Value == nil {
		return ""
	}
	if vs := form.Value[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// ReadFileHeader reads an uploaded file fully. maxBytes <= 0 disables the cap.
func ReadFileHeader(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, maxBytes)
	}
	return data, nil
}
