package ports

import "context"

type AnchorRequest struct {
	LotID  string
	Seq    int
	Status string
}

type AnchorReceipt struct {
	LotID       string `json:"lotId"`
	Seq         int    `json:"seq"`
	Status      string `json:"status"`
	TxID        string `json:"txId"`
	ConfirmedAt string `json:"confirmedAt"`
}

// Ledger anchors committed history entries on an external chain. It never
// gates a transition.
type Ledger interface {
	Anchor(ctx context.Context, req AnchorRequest) (AnchorReceipt, error)
}
