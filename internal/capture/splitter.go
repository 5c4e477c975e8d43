package capture

import "iter"

// DefaultBrowserLimit is the maximum number of browsers the service accepts per job.
const DefaultBrowserLimit = 25

// SplitUnits lazily yields units whose browser sets fit within limit, preserving
// input order. Units already within the limit are yielded unchanged.
func SplitUnits(units []CaptureUnit, limit int) iter.Seq[CaptureUnit] {
	return func(yield func(CaptureUnit) bool) {
		for _, u := range units {
			for part := range SplitUnit(u, limit) {
				if !yield(part) {
					return
				}
			}
		}
	}
}

// SplitUnit partitions one unit's browsers into consecutive chunks of at most
// limit. Every chunk shares the unit's URL, filename, and config.
func SplitUnit(u CaptureUnit, limit int) iter.Seq[CaptureUnit] {
	if limit <= 0 {
		limit = DefaultBrowserLimit
	}
	return func(yield func(CaptureUnit) bool) {
		if len(u.Browsers) <= limit {
			yield(u)
			return
		}
		for start := 0; start < len(u.Browsers); start += limit {
			end := min(start+limit, len(u.Browsers))
			part := u
			part.Browsers = append([]BrowserProfile(nil), u.Browsers[start:end]...)
			if !yield(part) {
				return
			}
		}
	}
}
