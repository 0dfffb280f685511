package shell

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/trekops/unifi-reporter/internal/model"
)

// syslogPattern matches the lenient BSD syslog grammar:
// "MMM dd HH:mm:ss host program[pid]: msg". Unparseable lines are still
// preserved (event_type=UNKNOWN, raw.text=line) rather than dropped.
var syslogPattern = regexp.MustCompile(
	`^(?P<month>[A-Za-z]{3})\s+(?P<day>\d{1,2})\s+(?P<time>\d\d:\d\d:\d\d)\s+(?P<host>\S+)\s+(?P<program>\S+?)(?:\[(?P<pid>\d+)\])?:\s*(?P<msg>.*)$`,
)

var monthIndex = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ParseSyslogLine parses one syslog line into a LogEntry. Syslog lines carry
// no year field, so the year is taken from referenceNow; a timestamp that
// would land more than 24h after referenceNow is moved back one year, which
// anchors lines from across a year boundary to the previous year.
func ParseSyslogLine(line string, referenceNow time.Time) model.LogEntry {
	m := syslogPattern.FindStringSubmatch(line)
	if m == nil {
		raw := map[string]any{"text": line}
		return model.NewLogEntry(model.SourceShell, referenceNow, "UNKNOWN", raw)
	}
	names := syslogPattern.SubexpNames()
	group := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" && i < len(m) {
			group[name] = m[i]
		}
	}
	month, ok := monthIndex[group["month"]]
	day, dayErr := strconv.Atoi(group["day"])
	if !ok || dayErr != nil {
		raw := map[string]any{"text": line}
		return model.NewLogEntry(model.SourceShell, referenceNow, "UNKNOWN", raw)
	}
	clock, err := time.Parse("15:04:05", group["time"])
	if err != nil {
		raw := map[string]any{"text": line}
		return model.NewLogEntry(model.SourceShell, referenceNow, "UNKNOWN", raw)
	}
	year := referenceNow.Year()
	ts := time.Date(year, month, day, clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
	if ts.After(referenceNow.Add(24 * time.Hour)) {
		ts = ts.AddDate(-1, 0, 0)
	}
	raw := map[string]any{
		"text":    line,
		"host":    group["host"],
		"program": group["program"],
		"pid":     group["pid"],
	}
	eventType := "UNKNOWN"
	if prog := strings.TrimSpace(group["program"]); prog != "" {
		eventType = prog
	}
	entry := model.NewLogEntry(model.SourceShell, ts, eventType, raw)
	entry.Message = group["msg"]
	return entry
}
