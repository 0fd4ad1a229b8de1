package blobstore

import (
	"fmt"
	"path"
	"strings"
)

// ObscuredPrefix is prepended to an original's file name to name its
// obscured derivative.
const ObscuredPrefix = "blurred_"

// ObscuredName maps an original key to its obscured key:
// "12/ab12.jpg" -> "12/blurred_ab12.jpg".
func ObscuredName(originalKey string) string {
	dir, file := path.Split(originalKey)
	return dir + ObscuredPrefix + file
}

// OriginalName is the inverse of ObscuredName.
func OriginalName(obscuredKey string) (string, error) {
	dir, file := path.Split(obscuredKey)
	if !strings.HasPrefix(file, ObscuredPrefix) || len(file) == len(ObscuredPrefix) {
		return "", fmt.Errorf("blobstore: %q is not an obscured asset name", obscuredKey)
	}
	return dir + strings.TrimPrefix(file, ObscuredPrefix), nil
}

// IsObscuredName reports whether key follows the obscured naming rule.
func IsObscuredName(key string) bool {
	_, err := OriginalName(key)
	return err == nil
}
