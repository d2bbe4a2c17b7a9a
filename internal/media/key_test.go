package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensionOfKnownMIMEs(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"image/gif":  "gif",
		"image/bmp":  "bmp",
		"image/tiff": "tiff",
	}
	for mime, want := range cases {
		assert.Equal(t, want, ExtensionOf(mime, "ignored.xyz"))
	}
}

func TestExtensionOfFallsBackToFilename(t *testing.T) {
	assert.Equal(t, "jpeg", ExtensionOf("application/unknown", "Photo.JPEG"))
	assert.Equal(t, "gz", ExtensionOf("application/unknown", "archive.tar.gz"))
	// Characters outside [a-z0-9] are stripped from the suffix.
	assert.Equal(t, "png", ExtensionOf("application/unknown", "shot.p n-g"))
	assert.Equal(t, "", ExtensionOf("application/unknown", "noextension"))
	assert.Equal(t, "", ExtensionOf("application/unknown", ""))
}

func TestBuildKeyFormat(t *testing.T) {
	assert.Equal(t, "uploads/u1/id1.png", BuildKey("u1", "id1", "png"))
	assert.Equal(t, "uploads/u1/id1", BuildKey("u1", "id1", ""))
}

func TestBuildKeyUniquePerOwnerAndID(t *testing.T) {
	seen := map[string]bool{}
	for _, owner := range []string{"alice", "bob"} {
		for _, id := range []string{"a", "b", "c"} {
			// Same filename-derived extension for every pair: the key must
			// still be unique because the id discriminates.
			key := BuildKey(owner, id, "jpg")
			assert.False(t, seen[key], "duplicate key %s", key)
			seen[key] = true
		}
	}
}
