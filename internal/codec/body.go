package codec

import (
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

func encodeBody(w *BitWriter, codeStr string, b message.MessageBody) error {
	code := messageCode(codeStr)
	switch code {
	case message.CodeAuthentication:
		if err := writeHexNibbles(w, b.VerificationMethod, 4); err != nil {
			return err
		}
		writeUTF8Remaining(w, b.VerificationData)
		return nil

	case message.CodeCrypto:
		if err := writeBCD(w, b.CryptoDataType, 8); err != nil {
			return err
		}
		return writeHexNibblesRemaining(w, b.CryptoData)

	case message.CodeFreeText:
		writeUTF8Remaining(w, b.Text)
		return nil

	case message.CodeResource:
		if err := writeHexNibbles(w, b.ResourceMethod, 4); err != nil {
			return err
		}
		writeUTF8Remaining(w, b.ResourceData)
		return nil

	case message.CodeTest:
		writeUTF8(w, b.PseudoMessageCode, 8)
		if b.PseudoBody == nil {
			return werrors.NewProcessingError(werrors.CodeFormat, "test message missing pseudo body")
		}
		return encodeBody(w, b.PseudoMessageCode, *b.PseudoBody)

	default:
		if code.IsSignSignal() {
			return encodeSignSignal(w, code, b)
		}
		return werrors.NewProcessingError(werrors.CodeFormat, "unknown message code for body encoding", codeStr)
	}
}

func decodeBody(r *BitReader, code message.Code) (message.MessageBody, error) {
	var b message.MessageBody
	var err error

	switch code {
	case message.CodeAuthentication:
		b.VerificationMethod, err = readHexNibbles(r, 4)
		if err != nil {
			return b, err
		}
		b.VerificationData, err = readUTF8Remaining(r)
		return b, err

	case message.CodeCrypto:
		b.CryptoDataType, err = readBCD(r, 8)
		if err != nil {
			return b, err
		}
		b.CryptoData, err = readHexNibblesRemaining(r)
		return b, err

	case message.CodeFreeText:
		b.Text, err = readUTF8Remaining(r)
		return b, err

	case message.CodeResource:
		b.ResourceMethod, err = readHexNibbles(r, 4)
		if err != nil {
			return b, err
		}
		b.ResourceData, err = readUTF8Remaining(r)
		return b, err

	case message.CodeTest:
		pcode, err := readUTF8(r, 8)
		if err != nil {
			return b, err
		}
		b.PseudoMessageCode = pcode
		pseudo, err := decodeBody(r, messageCode(pcode))
		if err != nil {
			return b, err
		}
		b.PseudoBody = &pseudo
		return b, nil

	default:
		if code.IsSignSignal() {
			return decodeSignSignal(r, code)
		}
		return b, werrors.NewProtocolError(werrors.CodeFormat, "unknown message code for body decoding", string(code))
	}
}

// writeUTF8Remaining writes s as a variable-length tail field. Since
// BitWriter has no fixed total length, the tail fields simply write exactly
// len(s) bytes; the schema does not pad them.
func writeUTF8Remaining(w *BitWriter, s string) {
	writeUTF8(w, s, len(s)*8)
}

func writeHexNibblesRemaining(w *BitWriter, s string) error {
	return writeHexNibbles(w, s, len(s)*4)
}

func encodeSignSignal(w *BitWriter, code message.Code, b message.MessageBody) error {
	if err := writeBCD(w, b.SubjectCode, 8); err != nil {
		return err
	}
	if err := writeDateTime(w, b.DateTime); err != nil {
		return err
	}
	if err := writeDuration(w, b.Duration); err != nil {
		return err
	}
	if err := writeBCD(w, b.ObjectType, 8); err != nil {
		return err
	}
	if err := writeLatLon(w, b.ObjectLatitude, 2); err != nil {
		return err
	}
	if err := writeLatLon(w, b.ObjectLongitude, 3); err != nil {
		return err
	}
	if err := writeBCD(w, b.ObjectSizeDim1, 16); err != nil {
		return err
	}
	if err := writeBCD(w, b.ObjectSizeDim2, 16); err != nil {
		return err
	}
	if err := writeBCD(w, b.ObjectOrientation, 12); err != nil {
		return err
	}

	if code == message.CodeRequest {
		for _, q := range b.ObjectTypeQuants {
			if err := writeBCD(w, q.ObjectType, 8); err != nil {
				return err
			}
			if err := writeBCD(w, q.ObjectTypeQuant, 8); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeSignSignal(r *BitReader, code message.Code) (message.MessageBody, error) {
	var b message.MessageBody
	var err error

	if b.SubjectCode, err = readBCD(r, 8); err != nil {
		return b, err
	}
	if b.DateTime, err = readDateTime(r); err != nil {
		return b, err
	}
	if b.Duration, err = readDuration(r); err != nil {
		return b, err
	}
	if b.ObjectType, err = readBCD(r, 8); err != nil {
		return b, err
	}
	if b.ObjectLatitude, err = readLatLon(r, 2); err != nil {
		return b, err
	}
	if b.ObjectLongitude, err = readLatLon(r, 3); err != nil {
		return b, err
	}
	if b.ObjectSizeDim1, err = readBCD(r, 16); err != nil {
		return b, err
	}
	if b.ObjectSizeDim2, err = readBCD(r, 16); err != nil {
		return b, err
	}
	if b.ObjectOrientation, err = readBCD(r, 12); err != nil {
		return b, err
	}

	if code == message.CodeRequest {
		for r.Remaining() >= 16 {
			var q message.ObjectTypeQuant
			if q.ObjectType, err = readBCD(r, 8); err != nil {
				return b, err
			}
			if q.ObjectTypeQuant, err = readBCD(r, 8); err != nil {
				return b, err
			}
			b.ObjectTypeQuants = append(b.ObjectTypeQuants, q)
		}
	}
	return b, nil
}
