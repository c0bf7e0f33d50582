package engine

import "strconv"

// cutArgs builds the ffmpeg argument list for a stream-copy trim. Seeking
// before -i is fast input seeking; -map 0 keeps every stream.
func cutArgs(inputName, outputName string, start, duration float64) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-progress", "pipe:2",
		"-ss", FormatArgSeconds(start),
		"-i", inputName,
		"-t", FormatArgSeconds(duration),
		"-c", "copy",
		"-map", "0",
		outputName,
	}
}

// FormatArgSeconds renders seconds with millisecond precision, the form the
// engine receives for -ss and -t.
func FormatArgSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
