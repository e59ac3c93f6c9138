package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/golang/mock/gomock"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"go.uber.org/zap"
)

var (
	contractA = model.ContractID{0xa}
	contractB = model.ContractID{0xb}
	txOne     = chainhash.Hash{0x01}
	txTwo     = chainhash.Hash{0x02}
	unmined   = model.WitnessStatus{}
)

func mined(h uint32) model.WitnessStatus { return model.WitnessStatus{Mined: true, Height: h} }

func newService(t *testing.T) (*Service, *MockAnchorStore, *MockChainOracle, *MockMetrics) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := NewMockAnchorStore(ctrl)
	oracle := NewMockChainOracle(ctrl)
	metrics := NewMockMetrics(ctrl)
	svc, err := New(store, oracle, metrics, model.Regtest, Config{SafetyDepth: 6, Workers: 2}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, store, oracle, metrics
}

func TestNewRequiresMetrics(t *testing.T) {
	if _, err := New(nil, nil, nil, model.Regtest, Config{}, zap.NewNop(), nil); err == nil {
		t.Fatalf("New() without metrics succeeded")
	}
}

func TestRefresh(t *testing.T) {
	boom := errors.New("node down")

	tests := []struct {
		name        string
		prepare     func(store *MockAnchorStore, oracle *MockChainOracle, metrics *MockMetrics)
		wantPending int
		wantErr     bool
	}{
		{
			name: "nothing pending",
			prepare: func(store *MockAnchorStore, _ *MockChainOracle, _ *MockMetrics) {
				store.EXPECT().PendingAnchors().Return(nil, nil)
			},
		},
		{
			name: "store fails",
			prepare: func(store *MockAnchorStore, _ *MockChainOracle, _ *MockMetrics) {
				store.EXPECT().PendingAnchors().Return(nil, boom)
			},
			wantErr: true,
		},
		{
			name: "newly mined but shallow stays pending",
			prepare: func(store *MockAnchorStore, oracle *MockChainOracle, metrics *MockMetrics) {
				store.EXPECT().PendingAnchors().Return([]model.Anchor{{ContractID: contractA, Txid: txOne}}, nil)
				oracle.EXPECT().TipHeight(gomock.Any()).Return(uint32(101), nil)
				oracle.EXPECT().GetConfirmationHeight(gomock.Any(), txOne).Return(uint32(100), true, nil)
				store.EXPECT().UpdateAnchorStatus(contractA, txOne, mined(100), false).Return(nil)
				metrics.EXPECT().ObserveStatusChange("mined")
			},
			wantPending: 1,
		},
		{
			name: "deep enough settles every contract sharing the witness",
			prepare: func(store *MockAnchorStore, oracle *MockChainOracle, metrics *MockMetrics) {
				store.EXPECT().PendingAnchors().Return([]model.Anchor{
					{ContractID: contractA, Txid: txOne, Status: mined(100)},
					{ContractID: contractB, Txid: txOne, Status: mined(100)},
				}, nil)
				oracle.EXPECT().TipHeight(gomock.Any()).Return(uint32(105), nil)
				oracle.EXPECT().GetConfirmationHeight(gomock.Any(), txOne).Return(uint32(100), true, nil).Times(1)
				store.EXPECT().UpdateAnchorStatus(contractA, txOne, mined(100), true).Return(nil)
				store.EXPECT().UpdateAnchorStatus(contractB, txOne, mined(100), true).Return(nil)
				metrics.EXPECT().ObserveStatusChange("settled").Times(2)
			},
		},
		{
			name: "reorged out and still unmined",
			prepare: func(store *MockAnchorStore, oracle *MockChainOracle, metrics *MockMetrics) {
				store.EXPECT().PendingAnchors().Return([]model.Anchor{
					{ContractID: contractA, Txid: txOne, Status: mined(100)},
					{ContractID: contractA, Txid: txTwo},
				}, nil)
				oracle.EXPECT().TipHeight(gomock.Any()).Return(uint32(101), nil)
				oracle.EXPECT().GetConfirmationHeight(gomock.Any(), txOne).Return(uint32(0), false, nil)
				oracle.EXPECT().GetConfirmationHeight(gomock.Any(), txTwo).Return(uint32(0), false, nil)
				store.EXPECT().UpdateAnchorStatus(contractA, txOne, unmined, false).Return(nil)
				metrics.EXPECT().ObserveStatusChange("reorg")
			},
			wantPending: 2,
		},
		{
			name: "oracle fails",
			prepare: func(store *MockAnchorStore, oracle *MockChainOracle, _ *MockMetrics) {
				store.EXPECT().PendingAnchors().Return([]model.Anchor{{ContractID: contractA, Txid: txOne}}, nil)
				oracle.EXPECT().TipHeight(gomock.Any()).Return(uint32(101), nil)
				oracle.EXPECT().GetConfirmationHeight(gomock.Any(), txOne).Return(uint32(0), false, boom)
			},
			wantPending: 1,
			wantErr:     true,
		},
		{
			name: "update fails",
			prepare: func(store *MockAnchorStore, oracle *MockChainOracle, _ *MockMetrics) {
				store.EXPECT().PendingAnchors().Return([]model.Anchor{{ContractID: contractA, Txid: txOne}}, nil)
				oracle.EXPECT().TipHeight(gomock.Any()).Return(uint32(200), nil)
				oracle.EXPECT().GetConfirmationHeight(gomock.Any(), txOne).Return(uint32(100), true, nil)
				store.EXPECT().UpdateAnchorStatus(contractA, txOne, mined(100), true).Return(boom)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, oracle, metrics := newService(t)
			tt.prepare(store, oracle, metrics)
			metrics.EXPECT().ObserveCycle(gomock.Any(), gomock.Any(), gomock.Any()).Times(1)

			pending, err := svc.Refresh(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Refresh() error = %v, wantErr %v", err, tt.wantErr)
			}
			if pending != tt.wantPending {
				t.Fatalf("Refresh() pending = %d, want %d", pending, tt.wantPending)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, store, _, metrics := newService(t)
	ctx, cancel := context.WithCancel(context.Background())

	store.EXPECT().PendingAnchors().Return(nil, nil)
	metrics.EXPECT().ObserveCycle(nil, 0, gomock.Any())
	var slept time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		cancel()
		return context.Canceled
	}

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if slept != longSleepDuration {
		t.Fatalf("Run() idle sleep = %v, want %v", slept, longSleepDuration)
	}
}

func TestWaitWakesOnBlockSignal(t *testing.T) {
	signal := make(chan struct{}, 1)
	svc := &Service{blockSignal: signal}
	signal <- struct{}{}

	done := make(chan error, 1)
	go func() { done <- svc.wait(context.Background(), time.Hour) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait() did not wake on block signal")
	}
}
