package jobqueue

import "fmt"

// FormatMemory formats a byte count for use in a batch-queue resource
// request, porting slurm_format_memory's thresholds and rounding verbatim:
// gigabyte/megabyte/kilobyte units are chosen by the same 10-unit cutoffs,
// and the result always rounds up so a request never underprovisions.
func FormatMemory(bytes int64) string {
	const (
		ki = 1024
		mi = 1024 * ki
		gi = 1024 * mi
	)
	switch {
	case bytes >= 10*gi:
		return fmt.Sprintf("%dG", ceilDiv(bytes, gi))
	case bytes >= 10*mi:
		return fmt.Sprintf("%dM", ceilDiv(bytes, mi))
	case bytes >= 10*ki:
		return fmt.Sprintf("%dK", ceilDiv(bytes, ki))
	default:
		return "1K"
	}
}

func ceilDiv(n, unit int64) int64 {
	return (n + unit - 1) / unit
}
