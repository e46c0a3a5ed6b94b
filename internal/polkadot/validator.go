package polkadot

import (
	"x402-backend/internal/apierrors"
)

// TransactionEnvelope is the locally decoded view of a signed transaction.
// The chain-level fields are opaque to this service, so a decoded envelope
// carries placeholders; the authoritative amount/recipient checks happen
// on-chain at submission time.
type TransactionEnvelope struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Signature string `json:"signature"`
	Nonce     uint64 `json:"nonce"`
}

// ValidationCriteria is what a verify request claims the transaction pays.
type ValidationCriteria struct {
	ExpectedAmount    uint64
	ExpectedRecipient string
}

// ValidateTransaction runs the local checks in order, stopping at the first
// failure: amount (overpayment passes), recipient (exact match), signature
// presence. Callers wanting defense-in-depth apply this before submission;
// the HTTP verify path deliberately does not, deferring to on-chain
// execution as the source of truth.
func ValidateTransaction(envelope TransactionEnvelope, criteria ValidationCriteria) error {
	if err := validateAmount(envelope.Amount, criteria.ExpectedAmount); err != nil {
		return err
	}
	if err := validateRecipient(envelope.To, criteria.ExpectedRecipient); err != nil {
		return err
	}
	return validateSignature(envelope.Signature)
}

func validateAmount(actual, expected uint64) error {
	if actual < expected {
		return apierrors.VerificationFailedf("Insufficient amount: expected %d, got %d", expected, actual)
	}
	return nil
}

func validateRecipient(actual, expected string) error {
	if actual != expected {
		return apierrors.VerificationFailedf("Invalid recipient: expected %s, got %s", expected, actual)
	}
	return nil
}

func validateSignature(signature string) error {
	if signature == "" {
		return apierrors.VerificationFailedf("Missing transaction signature")
	}
	return nil
}
