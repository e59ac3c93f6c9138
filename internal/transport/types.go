package transport

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	RelayMetrics interface {
		ObserveRequest(operation string, code int)
		ObserveStored(size int)
	}
)

// Ack is the recipient's verdict on a relayed consignment.
type Ack struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
