package engine

import (
	"bufio"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// progressParser turns ffmpeg -progress key=value lines into percentages of
// the expected output duration.
type progressParser struct {
	total   float64
	outTime *regexp.Regexp
	last    int
}

func newProgressParser(totalSeconds float64) *progressParser {
	return &progressParser{
		total:   totalSeconds,
		outTime: regexp.MustCompile(`^out_time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)$`),
		last:    -1,
	}
}

// parseLine returns the percentage for line and whether it carried progress.
func (p *progressParser) parseLine(line string) (int, bool) {
	line = strings.TrimSpace(line)

	if line == "progress=end" {
		return 100, true
	}

	var seconds float64
	switch {
	case strings.HasPrefix(line, "out_time_us="):
		// out_time_ms is also microseconds despite its name.
		us, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_us="), 10, 64)
		if err != nil {
			return 0, false
		}
		seconds = float64(us) / 1e6
	case strings.HasPrefix(line, "out_time="):
		m := p.outTime.FindStringSubmatch(line)
		if m == nil {
			return 0, false
		}
		h, _ := strconv.ParseFloat(m[1], 64)
		mins, _ := strconv.ParseFloat(m[2], 64)
		s, _ := strconv.ParseFloat(m[3], 64)
		seconds = h*3600 + mins*60 + s
	default:
		return 0, false
	}

	if p.total <= 0 || seconds < 0 {
		return 0, false
	}
	pct := int(math.Floor(seconds / p.total * 100))
	return max(0, min(pct, 99)), true
}

// stream reads r line by line, forwarding each line to tail and each new
// percentage to fn.
func (p *progressParser) stream(r io.Reader, tail io.Writer, fn ProgressFunc) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if pct, ok := p.parseLine(line); ok {
			if pct != p.last && fn != nil {
				fn(pct)
			}
			p.last = pct
			continue
		}
		if tail != nil && !isProgressKey(line) {
			io.WriteString(tail, line+"\n")
		}
	}
}

var progressKeys = []string{
	"frame=", "fps=", "stream_", "bitrate=", "total_size=", "out_time",
	"dup_frames=", "drop_frames=", "speed=", "progress=",
}

func isProgressKey(line string) bool {
	for _, k := range progressKeys {
		if strings.HasPrefix(line, k) {
			return true
		}
	}
	return false
}
