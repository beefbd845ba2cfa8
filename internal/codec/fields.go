package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// writeUTF8 encodes s as nbits/8 one-byte codepoints (spec §4.1 UTF-8
// decoder). s is padded/truncated to exactly nbits/8 bytes.
func writeUTF8(w *BitWriter, s string, nbits int) {
	n := nbits / 8
	b := make([]byte, n)
	copy(b, s)
	for _, c := range b {
		w.WriteBits(uint64(c), 8)
	}
}

func readUTF8(r *BitReader, nbits int) (string, error) {
	n := nbits / 8
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadBits(8)
		if err != nil {
			return "", err
		}
		b[i] = byte(v)
	}
	return string(b), nil
}

// readUTF8Remaining decodes every whole byte left in r as UTF-8, for the
// variable-length tail fields (VerificationData, Text, ResourceData).
func readUTF8Remaining(r *BitReader) (string, error) {
	n := r.Remaining() / 8
	return readUTF8(r, n*8)
}

// writeHexNibbles encodes s (a hex-digit string) as nbits/4 nibbles.
func writeHexNibbles(w *BitWriter, s string, nbits int) error {
	n := nbits / 4
	s = padRight(s, n, '0')
	if len(s) != n {
		return werrors.NewProcessingError(werrors.CodeFormat, "hex field too long", s)
	}
	for _, c := range s {
		v, err := hexNibble(byte(c))
		if err != nil {
			return err
		}
		w.WriteBits(uint64(v), 4)
	}
	return nil
}

func readHexNibbles(r *BitReader, nbits int) (string, error) {
	n := nbits / 4
	var sb strings.Builder
	for i := 0; i < n; i++ {
		v, err := r.ReadBits(4)
		if err != nil {
			return "", err
		}
		sb.WriteByte(nibbleHex(byte(v)))
	}
	return sb.String(), nil
}

func readHexNibblesRemaining(r *BitReader) (string, error) {
	return readHexNibbles(r, (r.Remaining()/4)*4)
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, werrors.NewProcessingError(werrors.CodeFormat, "invalid hex digit", string(c))
}

func nibbleHex(v byte) byte {
	const digits = "0123456789abcdef"
	return digits[v&0xf]
}

// writeBCD encodes s (a decimal-digit string) as nbits/4 BCD nibbles.
func writeBCD(w *BitWriter, s string, nbits int) error {
	n := nbits / 4
	s = padLeft(s, n, '0')
	if len(s) != n {
		return werrors.NewProcessingError(werrors.CodeFormat, "decimal field wrong length", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return werrors.NewProcessingError(werrors.CodeFormat, "invalid decimal digit", string(c))
		}
		w.WriteBits(uint64(c-'0'), 4)
	}
	return nil
}

func readBCD(r *BitReader, nbits int) (string, error) {
	n := nbits / 4
	var sb strings.Builder
	for i := 0; i < n; i++ {
		v, err := r.ReadBits(4)
		if err != nil {
			return "", err
		}
		if v > 9 {
			return "", werrors.NewProtocolError(werrors.CodeFormat, "invalid BCD digit")
		}
		sb.WriteByte('0' + byte(v))
	}
	return sb.String(), nil
}

// writeBinary writes a single 1-bit flag from "0"/"1".
func writeBinary(w *BitWriter, s string) error {
	switch s {
	case "0":
		w.WriteBits(0, 1)
	case "1":
		w.WriteBits(1, 1)
	default:
		return werrors.NewProcessingError(werrors.CodeFormat, "invalid binary flag", s)
	}
	return nil
}

func readBinary(r *BitReader) (string, error) {
	v, err := r.ReadBits(1)
	if err != nil {
		return "", err
	}
	if v == 0 {
		return "0", nil
	}
	return "1", nil
}

// --- DateTime: 56-bit BCD, 14 digits YYYYMMDDHHMMSS <-> ISO-8601 ---

func writeDateTime(w *BitWriter, iso string) error {
	digits, err := dateTimeToDigits(iso)
	if err != nil {
		return err
	}
	return writeBCD(w, digits, 56)
}

func readDateTime(r *BitReader) (string, error) {
	digits, err := readBCD(r, 56)
	if err != nil {
		return "", err
	}
	return digitsToDateTime(digits)
}

func dateTimeToDigits(iso string) (string, error) {
	t, err := time.Parse("2006-01-02T15:04:05Z", iso)
	if err != nil {
		return "", werrors.NewProcessingError(werrors.CodeFormat, "invalid datetime", iso)
	}
	return t.UTC().Format("20060102150405"), nil
}

func digitsToDateTime(digits string) (string, error) {
	if len(digits) != 14 {
		return "", werrors.NewProtocolError(werrors.CodeFormat, "invalid datetime digit count")
	}
	t, err := time.Parse("20060102150405", digits)
	if err != nil {
		return "", werrors.NewProtocolError(werrors.CodeFormat, "invalid datetime digits", digits)
	}
	return t.UTC().Format("2006-01-02T15:04:05Z"), nil
}

// --- Duration: 24-bit BCD, 6 digits DDHHMM <-> PxxDxxHxxM ---

func writeDuration(w *BitWriter, dur string) error {
	digits, err := durationToDigits(dur)
	if err != nil {
		return err
	}
	return writeBCD(w, digits, 24)
}

func readDuration(r *BitReader) (string, error) {
	digits, err := readBCD(r, 24)
	if err != nil {
		return "", err
	}
	return digitsToDuration(digits)
}

func durationToDigits(dur string) (string, error) {
	var days, hours, minutes int
	n, err := fmt.Sscanf(dur, "P%2dD%2dH%2dM", &days, &hours, &minutes)
	if err != nil || n != 3 {
		return "", werrors.NewProcessingError(werrors.CodeFormat, "invalid duration", dur)
	}
	return fmt.Sprintf("%02d%02d%02d", days, hours, minutes), nil
}

func digitsToDuration(digits string) (string, error) {
	if len(digits) != 6 {
		return "", werrors.NewProtocolError(werrors.CodeFormat, "invalid duration digit count")
	}
	return fmt.Sprintf("P%sD%sH%sM", digits[0:2], digits[2:4], digits[4:6]), nil
}

// --- Latitude: 29 bits (1 sign + 28 BCD, 7 digits DD.DDDDD) ---

func writeLatLon(w *BitWriter, value string, intDigits int) error {
	sign, digits, err := signedDecimalToDigits(value, intDigits, 5)
	if err != nil {
		return err
	}
	if err := writeBinary(w, sign); err != nil {
		return err
	}
	return writeBCD(w, digits, (intDigits+5)*4)
}

func readLatLon(r *BitReader, intDigits int) (string, error) {
	sign, err := readBinary(r)
	if err != nil {
		return "", err
	}
	digits, err := readBCD(r, (intDigits+5)*4)
	if err != nil {
		return "", err
	}
	return digitsToSignedDecimal(sign, digits, intDigits, 5)
}

// signedDecimalToDigits parses "±DD...D.ddddd" into a sign bit ("0"=+,
// "1"=-) and the concatenated integer+fraction BCD digit string.
func signedDecimalToDigits(value string, intDigits, fracDigits int) (sign, digits string, err error) {
	sign = "0"
	if strings.HasPrefix(value, "-") {
		sign = "1"
		value = value[1:]
	} else if strings.HasPrefix(value, "+") {
		value = value[1:]
	}
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return "", "", werrors.NewProcessingError(werrors.CodeFormat, "invalid decimal coordinate", value)
	}
	ip := padLeft(parts[0], intDigits, '0')
	fp := padRight(parts[1], fracDigits, '0')
	if len(ip) != intDigits || len(fp) != fracDigits {
		return "", "", werrors.NewProcessingError(werrors.CodeFormat, "coordinate digit count mismatch", value)
	}
	return sign, ip + fp, nil
}

func digitsToSignedDecimal(sign, digits string, intDigits, fracDigits int) (string, error) {
	if len(digits) != intDigits+fracDigits {
		return "", werrors.NewProtocolError(werrors.CodeFormat, "invalid coordinate digit count")
	}
	prefix := "+"
	if sign == "1" {
		prefix = "-"
	}
	return prefix + digits[:intDigits] + "." + digits[intDigits:], nil
}

func padLeft(s string, n int, pad byte) string {
	for len(s) < n {
		s = string(pad) + s
	}
	return s
}

func padRight(s string, n int, pad byte) string {
	for len(s) < n {
		s = s + string(pad)
	}
	return s
}
