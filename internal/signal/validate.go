package signal

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-auto-trader/internal/domain"
)

var (
	ErrInvalidAddress = errors.New("invalid solana address")
	ErrEmptySignal    = errors.New("signal has no mint")
)

// validAddress reports whether addr decodes to 32 base58 bytes.
func validAddress(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// isOnCurve reports whether the 32-byte point lies on the ed25519
// curve. Wallet addresses are curve points; PDAs are not.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// walletAddress reports whether addr is a plausible wallet: 32 base58
// bytes on the curve.
func walletAddress(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return isOnCurve(decoded)
}

// Validate checks a signal payload before it enters the queue. The mint
// must be a well-formed address; wallet addresses that fail the curve
// check are dropped from the metadata rather than failing the signal.
func Validate(sig *domain.Signal) error {
	if sig == nil || sig.Mint == "" {
		return ErrEmptySignal
	}
	if !validAddress(sig.Mint) {
		return fmt.Errorf("%w: mint %q", ErrInvalidAddress, sig.Mint)
	}

	wallets := sig.Metadata.WalletAddresses[:0]
	for _, w := range sig.Metadata.WalletAddresses {
		if walletAddress(w) {
			wallets = append(wallets, w)
		}
	}
	sig.Metadata.WalletAddresses = wallets
	return nil
}
