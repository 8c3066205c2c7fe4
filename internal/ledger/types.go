package ledger

import "errors"

// DeployPayload is the ledger-side representation of an election, with times
// already converted to unix seconds.
type DeployPayload struct {
	Title           string
	StartTime       int64
	EndTime         int64
	MaxVoters       int64
	RealTimeResults bool
}

// TxResult describes a confirmed transaction.
type TxResult struct {
	TxHash          string
	BlockNumber     int64
	GasUsed         uint64
	ContractAddress string
}

// UnsignedCall is a ledger call prepared for a client-held wallet to sign and
// broadcast itself.
type UnsignedCall struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	GasLimit uint64 `json:"gas_limit"`
	ChainID  int64  `json:"chain_id"`
}

// Sentinel errors used to classify ledger failures.
var (
	// ErrNotAuthorized marks a simulation revert that looks like a factory
	// authorization failure.
	ErrNotAuthorized = errors.New("signer is not an authorized deployer")

	// ErrInsufficientFunds marks a signer balance below the worst-case cost
	// of the transaction about to be sent.
	ErrInsufficientFunds = errors.New("signer balance below worst-case transaction cost")

	// ErrTxFailed marks a mined transaction whose receipt status is failure.
	ErrTxFailed = errors.New("transaction reverted")
)
