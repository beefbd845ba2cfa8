package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteflagprotocol/wfrelay/internal/blockchain"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/wfcrypto"
)

type stubResolver struct{ addr []byte }

func (s stubResolver) BinaryAddress(blockchainName, address string) ([]byte, error) {
	return s.addr, nil
}

func TestVerifyOriginatorMethod2MatchesStoredToken(t *testing.T) {
	binAddr := []byte{0x01, 0x02, 0x03, 0x04}
	token := []byte("shared-secret-token")
	derived, err := wfcrypto.DeriveAuthToken(token, authSalt, binAddr)
	require.NoError(t, err)

	authMsg := &message.Message{MessageBody: message.MessageBody{
		VerificationMethod: "2",
		VerificationData:   fmt.Sprintf("%x", derived),
	}}

	a := &Authenticator{
		Addresses: stubResolver{addr: binAddr},
		AuthMsgs: func(b, addr string) ([]*message.Message, error) {
			return []*message.Message{authMsg}, nil
		},
		Tokens: func(b, addr string) ([][]byte, error) { return [][]byte{token}, nil },
	}

	msg := &message.Message{MetaHeader: message.MetaHeader{Blockchain: "ethereum", OriginatorAddress: "0xabc"}}
	ok, err := a.VerifyOriginator(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyOriginatorMethod2RejectsWrongToken(t *testing.T) {
	binAddr := []byte{0x01, 0x02, 0x03, 0x04}
	authMsg := &message.Message{MessageBody: message.MessageBody{
		VerificationMethod: "2",
		VerificationData:   "deadbeef",
	}}

	a := &Authenticator{
		Addresses: stubResolver{addr: binAddr},
		AuthMsgs: func(b, addr string) ([]*message.Message, error) {
			return []*message.Message{authMsg}, nil
		},
		Tokens: func(b, addr string) ([][]byte, error) { return [][]byte{[]byte("wrong-token")}, nil },
	}

	msg := &message.Message{MetaHeader: message.MetaHeader{Blockchain: "ethereum", OriginatorAddress: "0xabc"}}
	ok, err := a.VerifyOriginator(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyOriginatorNoAuthMessagesFails(t *testing.T) {
	a := &Authenticator{
		Addresses: stubResolver{addr: []byte{1, 2, 3, 4}},
		AuthMsgs:  func(b, addr string) ([]*message.Message, error) { return nil, nil },
		Tokens:    func(b, addr string) ([][]byte, error) { return nil, nil },
	}
	msg := &message.Message{MetaHeader: message.MetaHeader{Blockchain: "ethereum", OriginatorAddress: "0xabc"}}
	ok, err := a.VerifyOriginator(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, ok)
}

type stubSigningAdapter struct{ blockchain.Adapter }

func (s stubSigningAdapter) RequestSignature(ctx context.Context, address string, payload []byte) (string, error) {
	return "signed." + address, nil
}

func TestSignPayloadDelegatesToAdapter(t *testing.T) {
	a := &Authenticator{
		Adapters: func(name string) (blockchain.Adapter, error) {
			return stubSigningAdapter{}, nil
		},
	}
	jws, err := a.SignPayload(context.Background(), "ethereum", "0xabc", "Example Org", "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, "signed.0xabc", jws)
}
