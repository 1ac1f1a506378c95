package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/domain"
)

// Transcode remuxes a downloaded MP4 audio stream into an M4A container
// without re-encoding. Files already in a taggable container pass through
// untouched. The input file is removed once the remuxed copy exists.
func Transcode(ctx context.Context, inputPath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(inputPath))
	if ext == constants.ExtMP3 || ext == constants.ExtFLAC || ext == constants.ExtM4A {
		return inputPath, nil
	}

	outPath := strings.TrimSuffix(inputPath, ext) + constants.ExtM4A

	// Stream copy only; the source already carries AAC audio.
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", inputPath,
		"-vn", "-c:a", "copy",
		"-movflags", "+faststart",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		if ctx.Err() != nil {
			return "", domain.NewResolutionError(domain.ErrorKindCancelled, domain.StageTranscode, ctx.Err())
		}
		return "", domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageTranscode,
			fmt.Errorf("ffmpeg remux failed: %s (%w)", string(out), err))
	}

	os.Remove(inputPath)
	return outPath, nil
}
