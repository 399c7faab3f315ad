package domain

// Discrepancy is a detected mismatch between the ledger and the provider.
// It is transient run output, never persisted.
type Discrepancy struct {
	OrderID          string
	OrderNumber      string
	DatabaseStatus   PaymentStatus
	ProviderStatus   ProviderStatus
	AmountCents      int64
	PaymentReference string
	Reason           string
}

// Report accumulates the counters for one reconciliation run.
type Report struct {
	TotalProcessed     int
	DiscrepanciesFound int
	SuccessfulUpdates  int
	FailedUpdates      int
	Skipped            int
	Errors             []string
	Discrepancies      []Discrepancy
}
