package deployer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type DeploymentStatus string

const (
	StatusPending  DeploymentStatus = "pending"
	StatusSuccess  DeploymentStatus = "success"
	StatusReverted DeploymentStatus = "reverted"
	StatusError    DeploymentStatus = "error"
)

func (s DeploymentStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusReverted || s == StatusError
}

var ErrRecordFinalized = errors.New("deployment record already has a terminal status")

// DeploymentRecord is the outcome of one contract creation. DeployedAddress is
// set only on success.
type DeploymentRecord struct {
	ContractName    string           `json:"contractName"`
	TransactionHash string           `json:"transactionHash,omitempty"`
	Status          DeploymentStatus `json:"status"`
	DeployedAddress string           `json:"deployedAddress,omitempty"`
	Error           string           `json:"error,omitempty"`
	BlockNumber     uint64           `json:"blockNumber,omitempty"`
	GasUsed         uint64           `json:"gasUsed,omitempty"`
}

func (r *DeploymentRecord) submitted(txHash common.Hash) {
	r.TransactionHash = txHash.Hex()
	r.Status = StatusPending
}

func (r *DeploymentRecord) finalize(status DeploymentStatus, err error) error {
	if r.Status.IsTerminal() {
		return ErrRecordFinalized
	} else if !status.IsTerminal() {
		return errors.Errorf("cannot finalize record with status %s", status)
	}

	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}

	return nil
}

func (r *DeploymentRecord) succeeded(address common.Address, blockNumber, gasUsed uint64) error {
	if err := r.finalize(StatusSuccess, nil); err != nil {
		return err
	}

	r.DeployedAddress = address.Hex()
	r.BlockNumber = blockNumber
	r.GasUsed = gasUsed
	return nil
}

// DeploymentReport lists one record per attempted contract, in compilation order.
type DeploymentReport struct {
	RunID   string              `json:"runId"`
	ChainID string              `json:"chainId"`
	From    string              `json:"from"`
	Records []*DeploymentRecord `json:"records"`
}

func (r *DeploymentReport) newRecord(contractName string) *DeploymentRecord {
	rec := &DeploymentRecord{
		ContractName: contractName,
		Status:       StatusPending,
	}

	r.Records = append(r.Records, rec)
	return rec
}

func (r *DeploymentReport) Record(contractName string) (*DeploymentRecord, bool) {
	for _, rec := range r.Records {
		if rec.ContractName == contractName {
			return rec, true
		}
	}

	return nil, false
}

func (r *DeploymentReport) CountByStatus(status DeploymentStatus) int {
	var n int
	for _, rec := range r.Records {
		if rec.Status == status {
			n++
		}
	}

	return n
}

// AllSucceeded is true when every contract reached StatusSuccess.
func (r *DeploymentReport) AllSucceeded() bool {
	return len(r.Records) > 0 && r.CountByStatus(StatusSuccess) == len(r.Records)
}
