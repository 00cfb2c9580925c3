package objectclient

import (
	"fmt"
	"path"
	"strings"
)

// UploadKey is where the original PDF of an extraction is archived.
func UploadKey(id, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload.pdf"
	}
	return fmt.Sprintf("extractions/%s/%s", id, name)
}

// TextKey is where the extracted text of an extraction is archived.
func TextKey(id string) string {
	return fmt.Sprintf("extractions/%s/text.txt", id)
}

func ObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
