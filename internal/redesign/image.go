package redesign

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var supportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Image is an encoded room photo.
type Image struct {
	Data     []byte
	MIMEType string
}

// NewImage sniffs the MIME type from the bytes.
func NewImage(data []byte) Image {
	return Image{Data: data, MIMEType: mimetype.Detect(data).String()}
}

// ParseDataURL decodes a data:image/<type>;base64,<payload> string.
func ParseDataURL(s string) (Image, error) {
	if s == "" {
		return Image{}, &Error{Kind: KindInvalidImage, Detail: "Image is required"}
	}
	if !strings.HasPrefix(s, "data:image/") {
		return Image{}, &Error{Kind: KindInvalidImage, Detail: "Invalid image format"}
	}

	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return Image{}, &Error{Kind: KindInvalidImage, Detail: "Invalid image format"}
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return Image{}, &Error{Kind: KindInvalidImage, Detail: "Invalid image format", Err: err}
	}

	mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return Image{Data: data, MIMEType: mimeType}, nil
}

// DataURL encodes the image the way backends accept it inline.
func (img Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", normalizeMIME(img.MIMEType), base64.StdEncoding.EncodeToString(img.Data))
}

// Validate checks that the image is non-empty, declares a supported type and
// that its bytes are of that type.
func (img Image) Validate() error {
	if len(img.Data) == 0 {
		return &Error{Kind: KindInvalidImage, Detail: "Image is required"}
	}

	declared := normalizeMIME(img.MIMEType)
	if !supportedMIMETypes[declared] {
		return &Error{Kind: KindInvalidImage, Detail: fmt.Sprintf("unsupported image type %q", img.MIMEType)}
	}

	detected := mimetype.Detect(img.Data)
	if !detected.Is(declared) {
		return &Error{Kind: KindInvalidImage, Detail: fmt.Sprintf("image declared as %s but content is %s", declared, detected.String())}
	}
	return nil
}

// decodeBase64 tolerates line breaks and missing padding.
func decodeBase64(payload string) ([]byte, error) {
	clean := strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(payload)
	data, err := base64.StdEncoding.DecodeString(clean)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(clean); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "image/jpg" {
		return "image/jpeg"
	}
	return m
}
