package signal

import (
	"errors"
	"testing"

	"solana-auto-trader/internal/domain"
)

// Known-good addresses: the WSOL mint decodes to 32 bytes, the system
// program (32 zero bytes) is an on-curve point.
const (
	wsolMint      = "So11111111111111111111111111111111111111112"
	systemProgram = "11111111111111111111111111111111"
)

func TestValidate_AcceptsWellFormedMint(t *testing.T) {
	s := &domain.Signal{Mint: wsolMint}
	if err := Validate(s); err != nil {
		t.Fatalf("expected valid signal, got %v", err)
	}
}

func TestValidate_RejectsEmptySignal(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrEmptySignal) {
		t.Errorf("nil signal: expected ErrEmptySignal, got %v", err)
	}
	if err := Validate(&domain.Signal{}); !errors.Is(err, ErrEmptySignal) {
		t.Errorf("empty mint: expected ErrEmptySignal, got %v", err)
	}
}

func TestValidate_RejectsMalformedMint(t *testing.T) {
	cases := []string{
		"not-an-address",  // chars outside the base58 alphabet
		"abc",             // decodes to fewer than 32 bytes
		systemProgram + wsolMint, // too long
	}
	for _, mint := range cases {
		err := Validate(&domain.Signal{Mint: mint})
		if !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("mint %q: expected ErrInvalidAddress, got %v", mint, err)
		}
	}
}

func TestValidate_FiltersOffCurveWallets(t *testing.T) {
	s := &domain.Signal{
		Mint: wsolMint,
		Metadata: domain.SignalMetadata{
			WalletAddresses: []string{systemProgram, "not-a-wallet", "abc"},
		},
	}
	if err := Validate(s); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(s.Metadata.WalletAddresses) != 1 || s.Metadata.WalletAddresses[0] != systemProgram {
		t.Errorf("expected only the on-curve wallet to survive, got %v", s.Metadata.WalletAddresses)
	}
}

func TestIsOnCurve_RejectsWrongLength(t *testing.T) {
	if isOnCurve(make([]byte, 31)) {
		t.Error("31 bytes must not be on curve")
	}
	if isOnCurve(nil) {
		t.Error("nil must not be on curve")
	}
}
