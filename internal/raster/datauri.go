package raster

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURI parses a data:[<mediatype>][;base64],<data> URI carrying a
// supported raster image and returns the decoded bytes plus the canonical
// extension for its MIME type. Only base64 payloads are accepted.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("raster: invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("raster: only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("raster: invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext, ok := MIMEToExt[mime]
	if !ok {
		return nil, "", fmt.Errorf("raster: unsupported MIME type in data URI: %s", mime)
	}
	return data, ext, nil
}

// EncodeDataURI wraps PNG bytes in a base64 data URI.
func EncodeDataURI(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}
