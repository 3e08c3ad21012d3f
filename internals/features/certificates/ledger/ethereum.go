package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// StudentRegistryABI covers the two registry methods the service calls.
const StudentRegistryABI = `[
  {"type":"function","name":"addRecord","stateMutability":"nonpayable",
   "inputs":[{"name":"studentId","type":"string"},{"name":"recordId","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"getRecords","stateMutability":"view",
   "inputs":[{"name":"studentId","type":"string"}],
   "outputs":[{"name":"","type":"string[]"}]}
]`

// EthereumLedger writes attestations to the StudentRegistry contract.
type EthereumLedger struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	address  common.Address

	// serializes nonce assignment for the single signing key
	txMu sync.Mutex
}

func DialEthereumLedger(ctx context.Context, rpcURL, privateKeyHex, contractAddress string) (*EthereumLedger, error) {
	if rpcURL == "" || privateKeyHex == "" || contractAddress == "" {
		return nil, errors.New("ledger: RPC_URL, PRIVATE_KEY and STUDENT_REGISTRY_ADDRESS are required for the ethereum driver")
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("ledger: invalid contract address %q", contractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse private key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(StudentRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse abi: %w", err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: chain id: %v", ErrUnavailable, err)
	}

	addr := common.HexToAddress(contractAddress)
	log.Printf("[LEDGER] ethereum registry=%s chain=%s signer=%s",
		addr.Hex(), chainID, crypto.PubkeyToAddress(key.PublicKey).Hex())

	return &EthereumLedger{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client, client, client),
		key:      key,
		chainID:  chainID,
		address:  addr,
	}, nil
}

func (l *EthereumLedger) Close() error {
	l.client.Close()
	return nil
}

// Write sends addRecord and waits for the receipt. The reference is the
// transaction hash.
func (l *EthereumLedger) Write(ctx context.Context, studentID, recordID string) (string, error) {
	tx, err := l.send(ctx, studentID, recordID)
	if err != nil {
		return "", err
	}

	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return "", fmt.Errorf("%w: wait for %s: %v", ErrUnavailable, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("%w: tx %s reverted", ErrRejected, tx.Hash().Hex())
	}
	log.Printf("[LEDGER] addRecord student=%s record=%s tx=%s block=%s",
		studentID, recordID, tx.Hash().Hex(), receipt.BlockNumber)
	return tx.Hash().Hex(), nil
}

func (l *EthereumLedger) send(ctx context.Context, studentID, recordID string) (*types.Transaction, error) {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(l.key, l.chainID)
	if err != nil {
		return nil, fmt.Errorf("ledger: transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := l.contract.Transact(opts, "addRecord", studentID, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: addRecord: %v", ErrUnavailable, err)
	}
	return tx, nil
}

func (l *EthereumLedger) Read(ctx context.Context, studentID string) ([]Attestation, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getRecords", studentID); err != nil {
		return nil, fmt.Errorf("%w: getRecords: %v", ErrUnavailable, err)
	}
	if len(out) == 0 {
		return []Attestation{}, nil
	}
	ids, ok := abi.ConvertType(out[0], new([]string)).(*[]string)
	if !ok || ids == nil {
		return nil, fmt.Errorf("ledger: unexpected getRecords output %T", out[0])
	}

	atts := make([]Attestation, 0, len(*ids))
	for i, id := range *ids {
		atts = append(atts, Attestation{
			StudentID: studentID,
			RecordID:  id,
			Sequence:  uint64(i + 1),
		})
	}
	return atts, nil
}
