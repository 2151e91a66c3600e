package discovery

// MinTokenLen is the shortest run ExtractStrings emits.
const MinTokenLen = 5

func readable(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') ||
		b == '.' || b == '-' || b == '_'
}

// ExtractStrings returns the runs of hostname characters in data, both as
// single-byte text and as UTF-16LE text (readable low byte, zero high
// byte). Both runs are collected in one pass; a wide run continues only
// while its code units are contiguous.
func ExtractStrings(data []byte) []string {
	var out []string
	var narrow, wide []byte
	wideNext := 0

	flush := func(run *[]byte) {
		if len(*run) >= MinTokenLen {
			out = append(out, string(*run))
		}
		*run = (*run)[:0]
	}

	for i, b := range data {
		if readable(b) {
			narrow = append(narrow, b)
		} else {
			flush(&narrow)
		}

		if i < wideNext {
			continue // high byte of the previous code unit
		}
		if i+1 < len(data) && data[i+1] == 0 && readable(b) {
			if i != wideNext {
				flush(&wide)
			}
			wide = append(wide, b)
			wideNext = i + 2
		} else {
			flush(&wide)
		}
	}
	flush(&narrow)
	flush(&wide)
	return out
}
