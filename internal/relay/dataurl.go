package relay

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var errMalformedDataURL = errors.New("malformed data URL")

// EncodeDataURL renders data as a base64 data URL with a sniffed media type.
func EncodeDataURL(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// DecodedLen returns the payload size of a base64 data URL without decoding it.
func DecodedLen(dataURL string) (int64, error) {
	_, payload, err := splitDataURL(dataURL)
	if err != nil {
		return 0, err
	}
	payload = strings.TrimRight(payload, "=")
	return int64(base64.RawStdEncoding.DecodedLen(len(payload))), nil
}

// DecodeDataURL returns the media type and bytes of a base64 data URL.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	mime, payload, err := splitDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errMalformedDataURL
	}
	return mime, data, nil
}

func splitDataURL(s string) (mime, payload string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", "", errMalformedDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", errMalformedDataURL
	}
	mime, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", errMalformedDataURL
	}
	return mime, payload, nil
}
