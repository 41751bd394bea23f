package outputs

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// GetFullPath constructs the full file path from filename and output path
func GetFullPath(filename string, outputPath string) string {
	return outputPath + string(os.PathSeparator) + filename
}

// DefaultFileName builds "<prefix>-<unix>-<short uuid>.<ext>" for results
// that carry no filename of their own.
func DefaultFileName(prefix, ext string) string {
	return fmt.Sprintf("%s-%d-%s.%s", prefix, time.Now().Unix(), GenerateShortUUID(), ext)
}

// GenerateShortUUID generates a random 10-character UUID
func GenerateShortUUID() string {
	b := make([]byte, 5) // 5 bytes = 10 hex characters
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// ensureDir creates the directory for fullpath when missing.
func ensureDir(fullpath string) error {
	dir := filepath.Dir(fullpath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, os.ModePerm)
	}
	return nil
}
