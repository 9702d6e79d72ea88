package envelope

import "bytes"

// uuencodeChar and uudecodeChar implement the classic uuencode alphabet,
// where a zero-valued 6-bit group is emitted as '`' instead of space so
// trailing whitespace is not stripped in transit.
func uuencodeChar(b byte) byte {
	if b == 0 {
		return '`'
	}
	return b + ' '
}

func uudecodeChar(b byte) byte {
	return (b - ' ') & 0o77
}

// uuEncode produces a uuencoded buffer for data under name, in the classic
// "begin MODE NAME" / 45-byte-line / "end" envelope.
func uuEncode(data []byte, name string) []byte {
	var buf bytes.Buffer
	buf.WriteString("begin 644 " + name + "\n")

	for i := 0; i < len(data); i += 45 {
		end := i + 45
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]
		buf.WriteByte(uuencodeChar(byte(len(chunk))))

		for j := 0; j < len(chunk); j += 3 {
			var group [3]byte
			copy(group[:], chunk[j:min(j+3, len(chunk))])
			buf.WriteByte(uuencodeChar(group[0] >> 2))
			buf.WriteByte(uuencodeChar(((group[0] << 4) | (group[1] >> 4)) & 0o77))
			buf.WriteByte(uuencodeChar(((group[1] << 2) | (group[2] >> 6)) & 0o77))
			buf.WriteByte(uuencodeChar(group[2] & 0o77))
		}
		buf.WriteByte('\n')
	}

	buf.WriteString("`\nend\n")
	return buf.Bytes()
}

// uuDecode decodes a uuencoded buffer, tolerating a leading preamble before
// the "begin MODE NAME" line, matching the reference parser's scan-until-
// begin behaviour. Lines that fail to decode cleanly are truncated to the
// byte count their length character declares, mirroring the reference
// implementation's workaround for truncated uuencoders.
func uuDecode(buffer []byte) []byte {
	lines := bytes.Split(buffer, []byte("\n"))

	start := -1
	for i, line := range lines {
		if !bytes.HasPrefix(line, []byte("begin")) {
			continue
		}
		fields := bytes.SplitN(line, []byte(" "), 3)
		if len(fields) == 3 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out bytes.Buffer
	for _, line := range lines[start+1:] {
		trimmed := bytes.TrimRight(line, " \t\r\n\f")
		if bytes.Equal(trimmed, []byte("end")) {
			break
		}
		out.Write(uuDecodeLine(line))
	}
	return out.Bytes()
}

func uuDecodeLine(line []byte) []byte {
	if len(line) == 0 {
		return nil
	}
	n := int(uudecodeChar(line[0]))
	data := line[1:]

	var out bytes.Buffer
	for i := 0; i+4 <= len(data) && out.Len() < n; i += 4 {
		var c [4]byte
		for j := 0; j < 4; j++ {
			c[j] = uudecodeChar(data[i+j])
		}
		out.WriteByte(c[0]<<2 | c[1]>>4)
		out.WriteByte(c[1]<<4 | c[2]>>2)
		out.WriteByte(c[2]<<6 | c[3])
	}

	decoded := out.Bytes()
	if len(decoded) > n {
		decoded = decoded[:n]
	}
	return decoded
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
