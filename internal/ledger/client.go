package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"election-system/pkg/config"
)

// Client handles all interactions with the external ledger: the election
// factory contract and the per-election contracts it creates. Every call is
// timeout-bounded; paying calls are preceded by dry-run simulation on the
// caller's side.
type Client struct {
	client      *ethclient.Client
	factory     common.Address
	factoryABI  abi.ABI
	electionABI abi.ABI
	privateKey  *ecdsa.PrivateKey
	signer      common.Address
	chainID     *big.Int

	gasLimitMin    uint64
	maxFeeCap      *big.Int
	priorityFeeCap *big.Int
	confirmTimeout time.Duration
	callTimeout    time.Duration
}

// NewClient creates a new ledger client. The signing key comes from
// configuration and has no fallback: an empty key is a hard error.
func NewClient(cfg *config.LedgerConfig) (*Client, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("ledger signing key is not configured")
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node: %v", err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %v", err)
	}

	factoryABI, err := abi.JSON(strings.NewReader(ElectionFactoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %v", err)
	}

	electionABI, err := abi.JSON(strings.NewReader(ElectionContractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse election ABI: %v", err)
	}

	gwei := big.NewInt(1_000_000_000)

	return &Client{
		client:         client,
		factory:        common.HexToAddress(cfg.FactoryAddress),
		factoryABI:     factoryABI,
		electionABI:    electionABI,
		privateKey:     privateKey,
		signer:         crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:        chainID,
		gasLimitMin:    cfg.GasLimitMin,
		maxFeeCap:      new(big.Int).Mul(big.NewInt(cfg.MaxFeeCapGwei), gwei),
		priorityFeeCap: new(big.Int).Mul(big.NewInt(cfg.PriorityFeeCapGwei), gwei),
		confirmTimeout: cfg.ConfirmTimeout,
		callTimeout:    cfg.CallTimeout,
	}, nil
}

// Close closes the ledger client connection
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// SignerAddress returns the address of the configured signing key.
func (c *Client) SignerAddress() string {
	return c.signer.Hex()
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

// classifyCallError maps revert reasons onto the package sentinels so callers
// can branch on the failure shape instead of string-matching themselves.
func classifyCallError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not authorized") || strings.Contains(msg, "unauthorized") {
		return fmt.Errorf("%v: %w", err, ErrNotAuthorized)
	}
	return err
}

// SimulateCreateElection performs a no-cost dry run of the factory's
// createElection call from the signer's address and returns the contract
// address the real call would produce. Address-generating calls only reveal
// their result through simulation, not through the pending transaction.
func (c *Client) SimulateCreateElection(ctx context.Context, p DeployPayload) (string, error) {
	input, err := c.factoryABI.Pack("createElection",
		p.Title, uint64(p.StartTime), uint64(p.EndTime), uint64(p.MaxVoters), p.RealTimeResults)
	if err != nil {
		return "", fmt.Errorf("failed to pack createElection: %v", err)
	}

	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	ret, err := c.client.CallContract(cctx, ethereum.CallMsg{
		From: c.signer,
		To:   &c.factory,
		Data: input,
	}, nil)
	if err != nil {
		return "", classifyCallError(err)
	}

	out, err := c.factoryABI.Unpack("createElection", ret)
	if err != nil {
		return "", fmt.Errorf("failed to unpack createElection result: %v", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("unexpected createElection return type")
	}

	return addr.Hex(), nil
}

// IsFactoryOwner reports whether the signer owns the factory contract.
func (c *Client) IsFactoryOwner(ctx context.Context) (bool, error) {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	var out []interface{}
	bound := bind.NewBoundContract(c.factory, c.factoryABI, c.client, c.client, c.client)
	if err := bound.Call(&bind.CallOpts{Context: cctx}, &out, "owner"); err != nil {
		return false, fmt.Errorf("failed to read factory owner: %v", err)
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return false, fmt.Errorf("unexpected owner return type")
	}
	return owner == c.signer, nil
}

// AuthorizeSelf registers the signer as an authorized deployer on the
// factory. Owner only; used as a one-time bootstrap remediation.
func (c *Client) AuthorizeSelf(ctx context.Context) error {
	_, err := c.transact(ctx, c.factory, c.factoryABI, "authorizeDeployer", c.signer)
	if err != nil {
		return fmt.Errorf("failed to authorize deployer: %w", err)
	}
	return nil
}

// suggestFees computes an EIP-1559 fee pair, clamping both the priority fee
// and the max fee to the configured caps.
func (c *Client) suggestFees(ctx context.Context) (tip, maxFee *big.Int, err error) {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	tip, err = c.client.SuggestGasTipCap(cctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest priority fee: %v", err)
	}
	if tip.Cmp(c.priorityFeeCap) > 0 {
		tip = new(big.Int).Set(c.priorityFeeCap)
	}

	head, err := c.client.HeaderByNumber(cctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch chain head: %v", err)
	}

	// maxFee = 2*baseFee + tip, bounded by the configured cap
	maxFee = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	if maxFee.Cmp(c.maxFeeCap) > 0 {
		maxFee = new(big.Int).Set(c.maxFeeCap)
	}

	return tip, maxFee, nil
}

// estimateGas estimates gas for a call and clamps the result to the
// configured minimum budget.
func (c *Client) estimateGas(ctx context.Context, to common.Address, input []byte) (uint64, error) {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	gas, err := c.client.EstimateGas(cctx, ethereum.CallMsg{
		From: c.signer,
		To:   &to,
		Data: input,
	})
	if err != nil {
		return 0, classifyCallError(err)
	}

	if gas < c.gasLimitMin {
		gas = c.gasLimitMin
	}
	return gas, nil
}

// checkBalance verifies the signer's balance covers the worst-case cost of a
// transaction with the given gas budget and fee cap.
func (c *Client) checkBalance(ctx context.Context, gasLimit uint64, maxFee *big.Int) error {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	balance, err := c.client.BalanceAt(cctx, c.signer, nil)
	if err != nil {
		return fmt.Errorf("failed to read signer balance: %v", err)
	}

	worstCase := new(big.Int).Mul(maxFee, new(big.Int).SetUint64(gasLimit))
	if balance.Cmp(worstCase) < 0 {
		return fmt.Errorf("balance %s wei, worst case %s wei: %w",
			balance.String(), worstCase.String(), ErrInsufficientFunds)
	}
	return nil
}

// transact packs, prices, balance-checks, sends and waits for one paying
// call. Receipt status other than success is a hard failure.
func (c *Client) transact(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) (*TxResult, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %v", method, err)
	}

	gasLimit, err := c.estimateGas(ctx, to, input)
	if err != nil {
		return nil, fmt.Errorf("gas estimation for %s failed: %w", method, err)
	}

	tip, maxFee, err := c.suggestFees(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.checkBalance(ctx, gasLimit, maxFee); err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %v", err)
	}
	opts.Context = ctx
	opts.GasTipCap = tip
	opts.GasFeeCap = maxFee
	opts.GasLimit = gasLimit

	bound := bind.NewBoundContract(to, contractABI, c.client, c.client, c.client)
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %v", method, classifyCallError(err))
	}

	return c.waitMined(ctx, tx)
}

// waitMined blocks until the transaction is confirmed or the confirm timeout
// elapses.
func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*TxResult, error) {
	wctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(wctx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s: %v", tx.Hash().Hex(), err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("transaction %s: %w", tx.Hash().Hex(), ErrTxFailed)
	}

	return &TxResult{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Int64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// CreateElection submits the real factory call. Callers are expected to have
// already simulated it and discovered the resulting contract address.
func (c *Client) CreateElection(ctx context.Context, p DeployPayload) (*TxResult, error) {
	return c.transact(ctx, c.factory, c.factoryABI,
		"createElection", p.Title, uint64(p.StartTime), uint64(p.EndTime), uint64(p.MaxVoters), p.RealTimeResults)
}

// StartElection marks the election contract active on the ledger.
func (c *Client) StartElection(ctx context.Context, contractAddr string) (*TxResult, error) {
	return c.transact(ctx, common.HexToAddress(contractAddr), c.electionABI, "startElection")
}

// IsElectionActive reads the election contract's active flag.
func (c *Client) IsElectionActive(ctx context.Context, contractAddr string) (bool, error) {
	return c.callBool(ctx, common.HexToAddress(contractAddr), "isElectionActive")
}

// BatchRegisterVoters registers a batch of voters on the election contract.
func (c *Client) BatchRegisterVoters(ctx context.Context, contractAddr string, voterIDs, emails []string) (*TxResult, error) {
	return c.transact(ctx, common.HexToAddress(contractAddr), c.electionABI,
		"batchRegisterVoters", voterIDs, emails)
}

// IsVoterRegistered checks registration state on the ledger, which is
// authoritative for this question.
func (c *Client) IsVoterRegistered(ctx context.Context, contractAddr, voterID string) (bool, error) {
	return c.callBool(ctx, common.HexToAddress(contractAddr), "isVoterRegistered", voterID)
}

// HasVoterVoted checks voting state on the ledger.
func (c *Client) HasVoterVoted(ctx context.Context, contractAddr, voterID string) (bool, error) {
	return c.callBool(ctx, common.HexToAddress(contractAddr), "hasVoterVoted", voterID)
}

// CastVote records a vote hash on the election contract from the server's
// signer.
func (c *Client) CastVote(ctx context.Context, contractAddr, voteHash, voterID string) (*TxResult, error) {
	return c.transact(ctx, common.HexToAddress(contractAddr), c.electionABI,
		"castVote", common.HexToHash(voteHash), voterID)
}

// PrepareCastVote builds an unsigned castVote call for a client-held wallet
// to sign and broadcast itself.
func (c *Client) PrepareCastVote(contractAddr, voteHash, voterID string) (*UnsignedCall, error) {
	input, err := c.electionABI.Pack("castVote", common.HexToHash(voteHash), voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack castVote: %v", err)
	}

	return &UnsignedCall{
		To:       contractAddr,
		Data:     "0x" + common.Bytes2Hex(input),
		GasLimit: c.gasLimitMin,
		ChainID:  c.chainID.Int64(),
	}, nil
}

// VerifyVoteTransaction independently verifies that a client-broadcast
// transaction succeeded and was sent to the given election contract. A
// client-supplied success claim is never trusted on its own.
func (c *Client) VerifyVoteTransaction(ctx context.Context, contractAddr, txHash string) (*TxResult, error) {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	hash := common.HexToHash(txHash)

	receipt, err := c.client.TransactionReceipt(cctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt for %s: %v", txHash, err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("transaction %s: %w", txHash, ErrTxFailed)
	}

	tx, _, err := c.client.TransactionByHash(cctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %v", txHash, err)
	}

	if tx.To() == nil || *tx.To() != common.HexToAddress(contractAddr) {
		return nil, fmt.Errorf("transaction %s does not target election contract %s", txHash, contractAddr)
	}

	return &TxResult{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Int64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// SignerBalance returns the balance of the signing account.
func (c *Client) SignerBalance(ctx context.Context) (*big.Int, error) {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	balance, err := c.client.BalanceAt(cctx, c.signer, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get signer balance: %v", err)
	}
	return balance, nil
}

// BlockNumber returns the latest block number, used by health checks.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	n, err := c.client.BlockNumber(cctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %v", err)
	}
	return n, nil
}

// callBool performs a read-only contract call returning a single bool.
func (c *Client) callBool(ctx context.Context, to common.Address, method string, args ...interface{}) (bool, error) {
	cctx, cancel := c.callCtx(ctx)
	defer cancel()

	var out []interface{}
	bound := bind.NewBoundContract(to, c.electionABI, c.client, c.client, c.client)
	if err := bound.Call(&bind.CallOpts{Context: cctx}, &out, method, args...); err != nil {
		return false, fmt.Errorf("failed to call %s: %v", method, err)
	}

	val, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s return type", method)
	}
	return val, nil
}
