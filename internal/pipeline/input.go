package pipeline

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuanwm/soulnote/internal/apperr"
)

// supportedAudioFormats is the whitelist of accepted container extensions.
var supportedAudioFormats = map[string]bool{
	".mp3": true,
	".wav": true,
	".m4a": true,
}

// Input is one raw submission: an audio payload or a UTF-8 text string.
type Input struct {
	Audio    []byte
	Filename string
	Text     string
}

func (in Input) hasAudio() bool { return len(in.Audio) > 0 }
func (in Input) hasText() bool  { return in.Text != "" }

// Validate classifies the input and rejects malformed submissions before
// any external call. Whitespace-only text is valid; supplying neither or
// both kinds of input is not.
func (in Input) Validate(maxAudioBytes int64) error {
	switch {
	case !in.hasAudio() && !in.hasText():
		return apperr.NewValidation("请提供音频文件或文本内容")
	case in.hasAudio() && in.hasText():
		return apperr.NewValidation("请只提供音频文件或文本内容中的一种")
	}

	if in.hasAudio() {
		ext := strings.ToLower(filepath.Ext(in.Filename))
		if !supportedAudioFormats[ext] {
			return apperr.NewValidation("不支持的音频格式: %s. 支持的格式: %s", ext, formatList())
		}
		if int64(len(in.Audio)) > maxAudioBytes {
			return apperr.NewValidation("音频文件过大: %d bytes. 最大允许: %d bytes", len(in.Audio), maxAudioBytes)
		}
	}

	return nil
}

func formatList() string {
	formats := make([]string, 0, len(supportedAudioFormats))
	for ext := range supportedAudioFormats {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return strings.Join(formats, ", ")
}
