package supervisor

import (
	"io"
	"os"
	"regexp"
	"strconv"
)

// PlayerCountFunc extracts a player count from a console log file. Injected
// so the scraping heuristic can be swapped and tested independently of the
// supervisor.
type PlayerCountFunc func(logPath string) (PlayerCount, error)

// tailBytes bounds how much of the console log is scanned; the players line
// repeats, so only the most recent window matters.
const tailBytes = 64 * 1024

var playersPattern = regexp.MustCompile(`Players:\s*(\d+)\s*/\s*(\d+)`)

// ScrapePlayerCount reads the tail of the console log and returns the last
// "Players: N/M" occurrence. Absent or unparseable logs yield a zero result.
func ScrapePlayerCount(logPath string) (PlayerCount, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return PlayerCount{}, nil
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return PlayerCount{}, nil
	}
	offset := fi.Size() - tailBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return PlayerCount{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(f, tailBytes))
	if err != nil {
		return PlayerCount{}, nil
	}

	matches := playersPattern.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return PlayerCount{}, nil
	}
	last := matches[len(matches)-1]
	count, _ := strconv.Atoi(string(last[1]))
	max, _ := strconv.Atoi(string(last[2]))
	return PlayerCount{Count: count, Max: max}, nil
}
