package codec

import (
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// ClearHeaderBytes is the number of leading on-wire bytes that always stay
// cleartext, encrypted or not: Prefix(16) + Version(8) + EncryptionIndicator(8)
// bits, exactly 4 bytes (spec §4.1/§4.2, §6). Everything from this offset on
// is what gets encrypted when EncryptionIndicator != "0".
const ClearHeaderBytes = 4

// Encode serialises a message's header and body into the on-wire byte
// buffer (spec §6). The first ClearHeaderBytes of the result are always
// cleartext; callers that encrypt must split there rather than encrypting
// the whole buffer.
func Encode(msg *message.Message) ([]byte, error) {
	w := NewBitWriter()

	if err := encodeHeader(w, msg.MessageHeader); err != nil {
		return nil, err
	}
	if err := encodeBody(w, msg.MessageHeader.MessageCode, msg.MessageBody); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode parses a raw wire buffer into a message. needsIV is true when the
// message is encrypted (any EncryptionIndicator other than "0"); the body is left empty
// in that case, since decryption happens at a higher layer once the IV is
// available (spec §4.5).
func Decode(raw []byte) (hdr message.MessageHeader, body message.MessageBody, needsIV bool, err error) {
	r := NewBitReader(raw)

	hdr, err = decodeHeader(r)
	if err != nil {
		return hdr, body, false, err
	}

	if hdr.EncryptionIndicator != "0" {
		return hdr, body, true, nil
	}

	body, err = decodeBody(r, messageCode(hdr.MessageCode))
	return hdr, body, false, err
}

// DecodeEncryptedBody parses only the cleartext prefix (Prefix/Version/
// EncryptionIndicator, ClearHeaderBytes long) from raw and returns the
// remaining bytes as ciphertext. The rest of the header — duress, message
// code, reference indicator, referenced message — is itself encrypted
// (spec §4.1 "Encryption is applied to all bytes after the first... bytes
// remain cleartext both ways") and must be parsed from the plaintext via
// DecodeDecryptedBody once decryption has happened.
func DecodeEncryptedBody(raw []byte) (hdr message.MessageHeader, ciphertext []byte, err error) {
	if len(raw) < ClearHeaderBytes {
		return hdr, nil, werrors.NewProtocolError(werrors.CodeFormat, "truncated encrypted message")
	}
	r := NewBitReader(raw[:ClearHeaderBytes])
	hdr, err = decodePrefix(r)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, raw[ClearHeaderBytes:], nil
}

// DecodeBody parses a decrypted body buffer for the given message code.
func DecodeBody(plaintext []byte, code message.Code) (message.MessageBody, error) {
	r := NewBitReader(plaintext)
	return decodeBody(r, code)
}

// DecodeDecryptedBody parses the remaining header fields (duress, message
// code, reference indicator, referenced message) and the body out of a
// decrypted plaintext buffer, merging them into hdr (which must already
// carry Prefix/Version/EncryptionIndicator from DecodeEncryptedBody).
func DecodeDecryptedBody(hdr message.MessageHeader, plaintext []byte) (message.MessageHeader, message.MessageBody, error) {
	r := NewBitReader(plaintext)
	h, err := decodeHeaderRest(r, hdr)
	if err != nil {
		return h, message.MessageBody{}, err
	}
	body, err := decodeBody(r, messageCode(h.MessageCode))
	return h, body, err
}

func messageCode(s string) message.Code {
	if len(s) != 1 {
		return 0
	}
	return message.Code(s[0])
}

func encodeHeader(w *BitWriter, h message.MessageHeader) error {
	writeUTF8(w, "WF", 16)
	writeUTF8(w, "1", 8)
	writeUTF8(w, h.EncryptionIndicator, 8)
	if err := writeBinary(w, h.DuressIndicator); err != nil {
		return err
	}
	writeUTF8(w, h.MessageCode, 8)
	if err := writeHexNibbles(w, h.ReferenceIndicator, 4); err != nil {
		return err
	}
	return writeHexNibbles(w, h.ReferencedMessage, 256)
}

// decodePrefix reads just the 4 bytes (32 bits) that are always cleartext:
// Prefix, Version, EncryptionIndicator.
func decodePrefix(r *BitReader) (message.MessageHeader, error) {
	var h message.MessageHeader
	prefix, err := readUTF8(r, 16)
	if err != nil {
		return h, err
	}
	if prefix != "WF" {
		return h, werrors.NewProtocolError(werrors.CodeFormat, "missing WF prefix", prefix)
	}
	h.Prefix = prefix

	version, err := readUTF8(r, 8)
	if err != nil {
		return h, err
	}
	h.Version = version

	encInd, err := readUTF8(r, 8)
	if err != nil {
		return h, err
	}
	h.EncryptionIndicator = encInd

	return h, nil
}

// decodeHeaderRest reads the header fields that follow the cleartext
// prefix — duress indicator, message code, reference indicator, referenced
// message — continuing into h. For a cleartext message r reads straight on
// from the prefix bits; for an encrypted message r wraps the decrypted
// plaintext instead, starting fresh at bit 0.
func decodeHeaderRest(r *BitReader, h message.MessageHeader) (message.MessageHeader, error) {
	duress, err := readBinary(r)
	if err != nil {
		return h, err
	}
	h.DuressIndicator = duress

	code, err := readUTF8(r, 8)
	if err != nil {
		return h, err
	}
	if !message.Code(code[0]).Valid() {
		return h, werrors.NewProtocolError(werrors.CodeFormat, "unknown message code", code)
	}
	h.MessageCode = code

	refInd, err := readHexNibbles(r, 4)
	if err != nil {
		return h, err
	}
	h.ReferenceIndicator = refInd

	refMsg, err := readHexNibbles(r, 256)
	if err != nil {
		return h, err
	}
	h.ReferencedMessage = refMsg

	return h, nil
}

func decodeHeader(r *BitReader) (message.MessageHeader, error) {
	h, err := decodePrefix(r)
	if err != nil {
		return h, err
	}
	return decodeHeaderRest(r, h)
}
