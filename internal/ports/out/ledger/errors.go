package ledger

import "errors"

var (
	// ErrInsufficientFunds indicates the payer's balance is below the transfer amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWouldReap indicates a KeepAlive transfer would have emptied the payer's account.
	ErrWouldReap = errors.New("transfer would remove payer account")

	// ErrBalanceOverflow indicates crediting the payee would overflow its balance.
	ErrBalanceOverflow = errors.New("balance overflow")
)
