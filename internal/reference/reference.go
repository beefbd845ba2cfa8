// Package reference implements the Whiteflag reference-chain validator
// (spec §4.6): given a message and the message it references, decide
// whether that reference is permitted by message-type and
// reference-indicator policy. New to this repo — the teacher has no
// analogous cross-record consistency check — built directly from the
// spec's rule list in the teacher's validator style (a small pure
// function plus a table-driven policy, mirroring how
// internal/config.Validate closes its own enums).
package reference

import (
	"fmt"
	"strings"

	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

// Lookup resolves a referenced message by hash, returning (nil, nil) if
// none is found — the caller distinguishes "not found" from "lookup
// failed" via the error return.
type Lookup func(blockchain, hash string) (*message.Message, error)

// Policy describes which reference indicators are permitted between which
// message-type pairs. The concrete Whiteflag indicator semantics (what "2"
// versus "5" means) are a protocol-governance detail outside this
// distillation's source material; this type models the mechanism the spec
// calls for — allowedToReference / same-originator / different-originator
// gating — seeded with a permissive default (see DefaultPolicy) that a
// real deployment would replace with its governing body's published table.
type Policy struct {
	// AllowedToReference lists which ReferenceIndicator values are valid
	// for a (code, referencedCode) pair.
	AllowedToReference map[codePair][]string
	// AllowedSameOriginator/AllowedDifferentOriginator restrict specific
	// indicators to same- or different-originator references. An
	// indicator absent from both maps is unrestricted.
	AllowedSameOriginator      map[string]bool
	AllowedDifferentOriginator map[string]bool
}

type codePair struct {
	code, referencedCode message.Code
}

// DefaultPolicy permits any non-test message to reference any other
// message under any indicator, and places no same/different
// originator restriction. It exists so the mechanism is exercised and
// testable; operators are expected to supply their own Policy built from
// the protocol governance table for their deployment.
func DefaultPolicy() *Policy {
	return &Policy{
		AllowedToReference:         map[codePair][]string{},
		AllowedSameOriginator:      map[string]bool{},
		AllowedDifferentOriginator: map[string]bool{},
	}
}

// allows reports whether policy permits code referencing referencedCode
// under indicator. An empty AllowedToReference entry (the default) is
// treated as "no restriction" rather than "nothing allowed".
func (p *Policy) allows(code, referencedCode message.Code, indicator string) bool {
	allowed, restricted := p.AllowedToReference[codePair{code, referencedCode}]
	if restricted && !contains(allowed, indicator) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Validate implements spec §4.6. It mutates msg.MetaHeader.ReferenceValid
// and returns a werrors protocol error on violation, or a plain error when
// the lookup itself fails (nil on success, including the valid
// ReferenceIndicator=0 case).
func Validate(msg *message.Message, policy *Policy, lookup Lookup) error {
	if policy == nil {
		policy = DefaultPolicy()
	}

	hdr := msg.MessageHeader
	if message.Code(hdr.MessageCode[0]) == message.CodeTest {
		msg.MetaHeader.ReferenceValid = true
		return nil
	}

	indicator := hdr.ReferenceIndicator
	if indicator == "0" {
		msg.MetaHeader.ReferenceValid = true
		return nil
	}

	if isAllZero(hdr.ReferencedMessage) {
		msg.MetaHeader.ReferenceValid = false
		return werrors.NewProtocolError(werrors.CodeReference, fmt.Sprintf(
			"non-zero reference indicator %q requires a non-zero referenced message hash", indicator))
	}

	referenced, err := lookup(msg.MetaHeader.Blockchain, hdr.ReferencedMessage)
	if err != nil {
		msg.MetaHeader.ReferenceValid = false
		return werrors.NewPlainError("referenced message lookup failed", err)
	}
	if referenced == nil {
		msg.MetaHeader.ReferenceValid = false
		return werrors.NewProtocolError(werrors.CodeReference, fmt.Sprintf(
			"referenced message %s not found", hdr.ReferencedMessage))
	}

	code := message.Code(hdr.MessageCode[0])
	referencedCode := message.Code(referenced.MessageHeader.MessageCode[0])

	if !policy.allows(code, referencedCode, indicator) {
		msg.MetaHeader.ReferenceValid = false
		return werrors.NewProtocolError(werrors.CodeReference, fmt.Sprintf(
			"message type %q may not reference type %q under indicator %q", string(code), string(referencedCode), indicator))
	}

	sameOriginator := strings.EqualFold(msg.MetaHeader.OriginatorAddress, referenced.MetaHeader.OriginatorAddress)
	if policy.AllowedSameOriginator[indicator] && !sameOriginator {
		msg.MetaHeader.ReferenceValid = false
		return werrors.NewProtocolError(werrors.CodeReference, fmt.Sprintf(
			"indicator %q requires same-originator reference", indicator))
	}
	if policy.AllowedDifferentOriginator[indicator] && sameOriginator {
		msg.MetaHeader.ReferenceValid = false
		return werrors.NewProtocolError(werrors.CodeReference, fmt.Sprintf(
			"indicator %q requires different-originator reference", indicator))
	}

	msg.MetaHeader.ReferenceValid = true
	return nil
}

func isAllZero(hexStr string) bool {
	for _, c := range hexStr {
		if c != '0' {
			return false
		}
	}
	return true
}
