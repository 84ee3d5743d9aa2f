package models

// TransactionRecord is a ledger transaction as reported by the block explorer.
// Numeric fields are kept as the decimal strings the explorer returns.
type TransactionRecord struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	Nonce       string `json:"nonce"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Gas         string `json:"gas"`
	GasPrice    string `json:"gasPrice"`
	IsError     string `json:"isError"`
	Input       string `json:"input"`
}
