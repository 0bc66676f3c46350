package sidecar

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const timestampLayout = "01/02/2006 @ 15:04:05"

var titleCaser = cases.Title(language.Und)

var wordBreaks = strings.NewReplacer("_", " ", "-", " ")

// displayName turns a raw deployment key like "csv_test" into "Csv Test".
func displayName(name string) string {
	return titleCaser.String(wordBreaks.Replace(name))
}

// formatTimestamp renders a Unix timestamp in the fixed UTC form the
// presentation layer expects.
func formatTimestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(timestampLayout)
}

// formatSyncProgress reports "100%" once every known header is validated,
// otherwise the verification progress fraction as a percentage.
func formatSyncProgress(blocks, headers int, progress float64) string {
	if blocks >= headers {
		return "100%"
	}
	return fmt.Sprintf("%.2f%%", 100*progress)
}

// formatSignalPercentage is the share of blocks in the current window that
// signal for a started deployment.
func formatSignalPercentage(count, elapsed int) string {
	return fmt.Sprintf("%.2f%%", 100*float64(count)/float64(elapsed))
}

// formatGiB renders a byte count in binary gigabytes.
func formatGiB(bytes uint64) string {
	return fmt.Sprintf("%.2f GiB", float64(bytes)/(1024*1024*1024))
}

// formatConnections renders peer counts as "N (I in / O out)".
func formatConnections(total, in, out int) string {
	return fmt.Sprintf("%d (%d in / %d out)", total, in, out)
}
