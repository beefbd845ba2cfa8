package btcadapter

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// txscriptExtractOpReturn returns the single data push carried by an
// OP_RETURN script, or an error if pkScript is not an OP_RETURN output.
func txscriptExtractOpReturn(pkScript []byte) ([]byte, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, pkScript)
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, fmt.Errorf("not an OP_RETURN script")
	}
	if !tokenizer.Next() {
		return nil, fmt.Errorf("OP_RETURN script carries no data push")
	}
	return tokenizer.Data(), nil
}
