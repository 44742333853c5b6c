// internal/models/image.go
package models

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidDataURI 不是 base64 编码的 data URI
var ErrInvalidDataURI = errors.New("invalid image data URI")

// ImageHandle 生成或编辑得到的图片，创建后不再修改
type ImageHandle struct {
	MIMEType string
	Data     []byte
}

// NewImageHandle 复制 data，调用方之后修改原切片不会影响句柄
func NewImageHandle(mimeType string, data []byte) ImageHandle {
	buf := make([]byte, len(data))
	copy(buf, data)
	return ImageHandle{MIMEType: mimeType, Data: buf}
}

// DataURI 渲染为 data:<mime>;base64,<payload>
func (h ImageHandle) DataURI() string {
	return "data:" + h.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(h.Data)
}

// MarshalJSON 序列化为 data URI 字符串，浏览器可以直接用作 <img src>
func (h ImageHandle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.DataURI())
}

// UnmarshalJSON 解析 MarshalJSON 产生的 data URI
func (h *ImageHandle) UnmarshalJSON(b []byte) error {
	var uri string
	if err := json.Unmarshal(b, &uri); err != nil {
		return err
	}
	parsed, err := ParseDataURI(uri)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseDataURI 解析 data:<mime>;base64,<payload>
func ParseDataURI(uri string) (ImageHandle, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ImageHandle{}, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ImageHandle{}, ErrInvalidDataURI
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mimeType == "" {
		return ImageHandle{}, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageHandle{}, ErrInvalidDataURI
	}
	return ImageHandle{MIMEType: mimeType, Data: data}, nil
}
