package reform

// stripComments blanks // comments that sit outside JSON strings. Comment
// bytes are overwritten with spaces rather than removed, so decoder offsets
// in error reports still point into the original file.
func stripComments(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)

	inString := false
	for i := 0; i < len(out); i++ {
		c := out[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '/':
			if i+1 < len(out) && out[i+1] == '/' {
				for i < len(out) && out[i] != '\n' {
					out[i] = ' '
					i++
				}
			}
		}
	}
	return out
}
