package crypto

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestLocalSigner_SignAndRecoverTypedData(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	action := OrderAction{
		Symbol:     "BTC",
		Side:       1,
		MarketType: 1,
		Size:       "0.0066",
		Nonce:      7,
		Cloid:      "0xabc123",
		Owner:      signer.Address(),
	}
	data := OrderTypedData(DefaultDomain(), action)

	sig, err := signer.SignTypedData(context.Background(), data)
	if err != nil {
		t.Fatalf("SignTypedData() error: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	ok, err := VerifyOrderSignature(DefaultDomain(), action, sig)
	if err != nil {
		t.Fatalf("VerifyOrderSignature() error: %v", err)
	}
	if !ok {
		t.Error("valid signature did not verify against owner")
	}
}

func TestVerifyOrderSignature_RejectsTamperedAction(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	action := OrderAction{
		Symbol: "ETH", Side: 1, MarketType: 1, Size: "0.5",
		Nonce: 1, Cloid: "c-1", Owner: signer.Address(),
	}
	sig, err := signer.SignTypedData(context.Background(), OrderTypedData(DefaultDomain(), action))
	if err != nil {
		t.Fatalf("SignTypedData() error: %v", err)
	}

	tampered := action
	tampered.Size = "5.0"
	ok, err := VerifyOrderSignature(DefaultDomain(), tampered, sig)
	if err != nil {
		t.Fatalf("VerifyOrderSignature() error: %v", err)
	}
	if ok {
		t.Error("tampered action verified as valid")
	}
}

func TestVerifyOrderSignature_RejectsWrongDomain(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	action := OrderAction{
		Symbol: "SOL", Side: 2, MarketType: 1, Size: "10",
		Nonce: 3, Cloid: "c-2", Owner: signer.Address(),
	}
	sig, err := signer.SignTypedData(context.Background(), OrderTypedData(DefaultDomain(), action))
	if err != nil {
		t.Fatalf("SignTypedData() error: %v", err)
	}

	other := DefaultDomain()
	other.ChainID.SetInt64(1) // mainnet domain
	ok, err := VerifyOrderSignature(other, action, sig)
	if err != nil {
		t.Fatalf("VerifyOrderSignature() error: %v", err)
	}
	if ok {
		t.Error("signature verified under a different domain")
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	// Well-known anvil dev key.
	const hexKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	for _, key := range []string{hexKey, "0x" + hexKey} {
		signer, err := FromPrivateKeyHex(key)
		if err != nil {
			t.Fatalf("FromPrivateKeyHex(%q) error: %v", key, err)
		}
		if signer.Address() != want {
			t.Errorf("address = %s, want %s", signer.Address(), want)
		}
	}
}

func TestSignMessage_Recoverable(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	msg := []byte("approve basket submission")
	sig, err := signer.SignMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("SignMessage() error: %v", err)
	}
	digest := ethcrypto.Keccak256Hash(msg).Bytes()
	if !VerifySignature(signer.Address(), digest, sig) {
		t.Error("message signature did not verify")
	}
}
