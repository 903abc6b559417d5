package extraction

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"

	"github.com/cepa-dev/cepa-chat/internal/core"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor extracts plain text from PDF files on disk via docconv.
type DocconvExtractor struct{}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{}
}

// ExtractText reads the file at path and returns its trimmed plain text.
// Callers decide how to treat failures; the corpus scan logs and skips.
func (e *DocconvExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	res, err := docconv.Convert(f, "application/pdf", false)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", path, err)
	}

	return strings.TrimSpace(res.Body), nil
}
