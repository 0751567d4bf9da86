package records

import (
	"bytes"

	"capconv/internal/errors"
)

const (
	sep   = ','
	quote = '"'
)

// split breaks one line into fields, appending them to dst.
//
// tshark's quote=d mode wraps every value in double quotes but does not
// escape quotes inside values, so a quoted field ends only at a quote
// that is followed by the separator or the end of the line.  Any other
// quote is part of the value.  Doubled quotes ("") are collapsed to one,
// matching what a CSV reader would do with escaped output.
//
// A value that itself holds a quote followed by the separator, such as
// the SSID a",b, is indistinguishable from a field boundary.  It splits
// into one field too many and the reader drops the line as malformed.
func split(line []byte, dst []string) ([]string, error) {
	i := 0
	for {
		if i < len(line) && line[i] == quote {
			end := closingQuote(line, i+1)
			if end < 0 {
				return dst, errors.ErrUnterminated
			}
			dst = append(dst, unescape(line[i+1:end]))
			i = end + 1
			if i == len(line) {
				return dst, nil
			}
			i++ // separator
			continue
		}

		k := bytes.IndexByte(line[i:], sep)
		if k < 0 {
			return append(dst, string(line[i:])), nil
		}
		dst = append(dst, string(line[i:i+k]))
		i += k + 1
	}
}

// closingQuote returns the index of the quote that closes a field opened
// just before from, or -1.
func closingQuote(line []byte, from int) int {
	for j := from; j < len(line); {
		k := bytes.IndexByte(line[j:], quote)
		if k < 0 {
			return -1
		}
		k += j
		if k+1 == len(line) || line[k+1] == sep {
			return k
		}
		j = k + 1
	}
	return -1
}

func unescape(b []byte) string {
	if bytes.Contains(b, []byte{quote, quote}) {
		return string(bytes.ReplaceAll(b, []byte{quote, quote}, []byte{quote}))
	}
	return string(b)
}
