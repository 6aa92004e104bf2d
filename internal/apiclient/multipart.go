package apiclient

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Multipart accumulates a multipart/form-data payload. The first error sticks.
type Multipart struct {
	buf    bytes.Buffer
	w      *multipart.Writer
	fields []string
	values map[string]string
	err    error
	closed bool
}

func NewMultipart() *Multipart {
	m := &Multipart{values: make(map[string]string)}
	m.w = multipart.NewWriter(&m.buf)
	return m
}

// File adds a file part with an explicit content type.
func (m *Multipart) File(field, filename, contentType string, data []byte) *Multipart {
	if m.err != nil {
		return m
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := m.w.CreatePart(h)
	if err != nil {
		m.err = err
		return m
	}
	if _, err := part.Write(data); err != nil {
		m.err = err
		return m
	}
	m.fields = append(m.fields, field)
	return m
}

// Field adds a plain form value. Empty values are skipped.
func (m *Multipart) Field(name, value string) *Multipart {
	if m.err != nil || value == "" {
		return m
	}
	if err := m.w.WriteField(name, value); err != nil {
		m.err = err
		return m
	}
	m.fields = append(m.fields, name)
	m.values[name] = value
	return m
}

// Value returns a plain form value added with Field.
func (m *Multipart) Value(name string) string {
	return m.values[name]
}

// Fields lists the part names in insertion order.
func (m *Multipart) Fields() []string {
	return append([]string(nil), m.fields...)
}

// Close finalizes the payload.
func (m *Multipart) Close() ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	if !m.closed {
		if err := m.w.Close(); err != nil {
			return nil, "", err
		}
		m.closed = true
	}
	return m.buf.Bytes(), m.w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
