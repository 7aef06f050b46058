package enums

import "fmt"

type BankAccountType string

const (
	BankAccountSavings BankAccountType = "savings"
	BankAccountCurrent BankAccountType = "current"
)

var validBankAccountTypes = []BankAccountType{
	BankAccountSavings,
	BankAccountCurrent,
}

func (t BankAccountType) String() string {
	return string(t)
}

func (t BankAccountType) IsValid() bool {
	for _, candidate := range validBankAccountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseBankAccountType(value string) (BankAccountType, error) {
	for _, candidate := range validBankAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bank account type %q", value)
}
