package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "dataset_token_****3456", MaskSecret("dataset_token_abcdef123456"))
	assert.Equal(t, "****wxyz", MaskSecret("abcdefwxyz"))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "", MaskSecret("  "))
}

func TestMaskMetadata(t *testing.T) {
	masked := MaskMetadata(map[string]any{
		"token":     "tok_abcdefgh",
		"remote_id": "pkg-1",
		" ":         "dropped",
		"nested":    map[string]any{"API_KEY": "key_12345678", "reason": "x"},
		"attempts":  3,
	})

	assert.Equal(t, "tok_****efgh", masked["token"])
	assert.Equal(t, "pkg-1", masked["remote_id"])
	assert.Equal(t, 3, masked["attempts"])
	assert.NotContains(t, masked, " ")
	assert.Equal(t, map[string]any{"API_KEY": "key_****5678", "reason": "x"}, masked["nested"])
}
