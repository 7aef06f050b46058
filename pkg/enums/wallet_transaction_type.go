package enums

import "fmt"

// WalletTransactionType classifies an entry in a vendor wallet log.
type WalletTransactionType string

const (
	WalletTxnCredit     WalletTransactionType = "credit"
	WalletTxnDebit      WalletTransactionType = "debit"
	WalletTxnRefund     WalletTransactionType = "refund"
	WalletTxnCommission WalletTransactionType = "commission"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTxnCredit,
	WalletTxnDebit,
	WalletTxnRefund,
	WalletTxnCommission,
}

// String implements fmt.Stringer.
func (t WalletTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known WalletTransactionType.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// BalanceDelta returns the signed effect of an entry of this type on the
// wallet balance. Commission entries are platform revenue and never move it.
func (t WalletTransactionType) BalanceDelta(amount int64) int64 {
	switch t {
	case WalletTxnCredit, WalletTxnRefund:
		return amount
	case WalletTxnDebit:
		return -amount
	default:
		return 0
	}
}

// ParseWalletTransactionType converts raw input into a WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
