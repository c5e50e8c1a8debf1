package csvread

const (
	delimiter = ','
	quote     = '"'
)

// ParseLine splits one delimited line into its fields.
//
// A quote character toggles the in-quotes state and is not emitted; while
// inside quotes the delimiter is literal content. The field accumulated at
// end of line is always emitted, even if a quote was left open.
func ParseLine(line string) []string {
	fields := make([]string, 0, 8)
	start := 0
	inQuotes := false
	var buf []byte

	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == quote:
			buf = append(buf, line[start:i]...)
			start = i + 1
			inQuotes = !inQuotes
		case c == delimiter && !inQuotes:
			buf = append(buf, line[start:i]...)
			fields = append(fields, string(buf))
			buf = buf[:0]
			start = i + 1
		}
	}
	buf = append(buf, line[start:]...)
	return append(fields, string(buf))
}
