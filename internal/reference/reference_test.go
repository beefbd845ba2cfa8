package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/werrors"
)

func zeroHash() string {
	s := make([]byte, 64)
	for i := range s {
		s[i] = '0'
	}
	return string(s)
}

func TestValidateZeroIndicatorAlwaysValid(t *testing.T) {
	msg := &message.Message{MessageHeader: message.MessageHeader{
		MessageCode: "A", ReferenceIndicator: "0", ReferencedMessage: zeroHash(),
	}}
	err := Validate(msg, nil, func(string, string) (*message.Message, error) { return nil, nil })
	require.NoError(t, err)
	assert.True(t, msg.MetaHeader.ReferenceValid)
}

func TestValidateTestMessageSkipsChecks(t *testing.T) {
	msg := &message.Message{MessageHeader: message.MessageHeader{
		MessageCode: "T", ReferenceIndicator: "9", ReferencedMessage: zeroHash(),
	}}
	err := Validate(msg, nil, func(string, string) (*message.Message, error) { return nil, nil })
	require.NoError(t, err)
	assert.True(t, msg.MetaHeader.ReferenceValid)
}

func TestValidateNonZeroIndicatorWithZeroHashIsInvalid(t *testing.T) {
	msg := &message.Message{MessageHeader: message.MessageHeader{
		MessageCode: "A", ReferenceIndicator: "1", ReferencedMessage: zeroHash(),
	}}
	err := Validate(msg, nil, func(string, string) (*message.Message, error) { return nil, nil })
	require.Error(t, err)
	we, ok := werrors.AsWFError(err)
	require.True(t, ok)
	assert.Equal(t, werrors.CodeReference, we.Code)
	assert.False(t, msg.MetaHeader.ReferenceValid)
}

func TestValidateMissingReferencedMessageErrors(t *testing.T) {
	hash := "1" + zeroHash()[1:]
	msg := &message.Message{MessageHeader: message.MessageHeader{
		MessageCode: "A", ReferenceIndicator: "1", ReferencedMessage: hash,
	}}
	err := Validate(msg, nil, func(string, string) (*message.Message, error) { return nil, nil })
	require.Error(t, err)
	assert.False(t, msg.MetaHeader.ReferenceValid)
}

func TestValidateFoundReferenceWithDefaultPolicyIsValid(t *testing.T) {
	hash := "1" + zeroHash()[1:]
	referenced := &message.Message{MessageHeader: message.MessageHeader{MessageCode: "A", ReferenceIndicator: "0"}}
	msg := &message.Message{
		MetaHeader:    message.MetaHeader{OriginatorAddress: "0xaaa"},
		MessageHeader: message.MessageHeader{MessageCode: "A", ReferenceIndicator: "1", ReferencedMessage: hash},
	}
	err := Validate(msg, DefaultPolicy(), func(string, string) (*message.Message, error) { return referenced, nil })
	require.NoError(t, err)
	assert.True(t, msg.MetaHeader.ReferenceValid)
}

func TestValidateRestrictedPolicyRejectsDisallowedIndicator(t *testing.T) {
	hash := "1" + zeroHash()[1:]
	referenced := &message.Message{MessageHeader: message.MessageHeader{MessageCode: "A", ReferenceIndicator: "0"}}
	msg := &message.Message{
		MessageHeader: message.MessageHeader{MessageCode: "F", ReferenceIndicator: "1", ReferencedMessage: hash},
	}
	policy := DefaultPolicy()
	policy.AllowedToReference[codePair{message.CodeFreeText, message.CodeAuthentication}] = []string{"2"}

	err := Validate(msg, policy, func(string, string) (*message.Message, error) { return referenced, nil })
	require.Error(t, err)
	assert.False(t, msg.MetaHeader.ReferenceValid)
}
