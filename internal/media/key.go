package media

import (
	"fmt"
	"path"
	"strings"
)

// allowedMIMEs maps every accepted image content type to its canonical
// extension. The map doubles as the upload allow-list.
var allowedMIMEs = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
}

// ExtensionOf resolves the storage extension for a file: the canonical
// extension for a known MIME type, otherwise the sanitized lowercase suffix
// of the filename, otherwise empty.
func ExtensionOf(mimeType, fileName string) string {
	if ext, ok := allowedMIMEs[mimeType]; ok {
		return ext
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildKey derives the object store key for an upload. The generated id, not
// the client filename, discriminates the key: filenames can collide or carry
// path traversal, ids cannot. The owner segment enables prefix-scoped
// authorization and auditing in the store.
func BuildKey(ownerID, id, ext string) string {
	if ext == "" {
		return fmt.Sprintf("uploads/%s/%s", ownerID, id)
	}
	return fmt.Sprintf("uploads/%s/%s.%s", ownerID, id, ext)
}
