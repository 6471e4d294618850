package media

import "strings"

// nativeExts have a pure Go decoder.
var nativeExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

// ffmpegExts are decoded through an ffmpeg subprocess.
var ffmpegExts = map[string]bool{
	".aiff": true,
	".aif":  true,
	".aac":  true,
	".m4a":  true,
	".m4b":  true,
	".opus": true,
}

// IsSupportedExt returns true if the extension is a supported audio format.
func IsSupportedExt(ext string) bool {
	ext = strings.ToLower(ext)
	return nativeExts[ext] || ffmpegExts[ext]
}

// IsNativeExt returns true if the extension decodes without external tools.
func IsNativeExt(ext string) bool {
	return nativeExts[strings.ToLower(ext)]
}

// NeedsFFmpeg returns true if the extension is only decodable through ffmpeg.
func NeedsFFmpeg(ext string) bool {
	return ffmpegExts[strings.ToLower(ext)]
}

// SupportedExtsList returns a human-readable list of supported audio formats.
func SupportedExtsList() string {
	return ".mp3, .wav, .flac, .ogg, .aiff, .aif, .aac, .m4a, .m4b, .opus"
}
