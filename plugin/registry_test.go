package plugin_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/plugin"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

type counter struct {
	name      string
	generated atomic.Int32
	rejected  atomic.Int32
	batches   atomic.Int32
}

func (c *counter) Name() string { return c.name }

func (c *counter) OnRentGenerated(context.Context, *rent.Rent) error {
	c.generated.Add(1)
	return nil
}

func (c *counter) OnPaymentRejected(context.Context, id.RentID, gateway.Claim, error) error {
	c.rejected.Add(1)
	return errors.New("rejected hook failed")
}

func (c *counter) OnBatchCompleted(context.Context, string, int, time.Duration) error {
	c.batches.Add(1)
	return nil
}

type sleeper struct{}

func (sleeper) Name() string { return "sleeper" }

func (sleeper) OnRentGenerated(context.Context, *rent.Rent) error {
	time.Sleep(time.Second)
	return nil
}

func TestRegistryDispatch(t *testing.T) {
	var logs bytes.Buffer
	reg := plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	c := &counter{name: "counter"}
	if err := reg.Register(c); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(&counter{name: "counter"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if reg.Count() != 1 || reg.Get("counter") != c {
		t.Fatalf("registry state: count=%d", reg.Count())
	}

	ctx := context.Background()
	reg.EmitRentGenerated(ctx, &rent.Rent{})
	reg.EmitRentGenerated(ctx, &rent.Rent{})
	reg.EmitBatchCompleted(ctx, plugin.JobGenerateRent, 2, time.Millisecond)
	reg.EmitPaymentRejected(ctx, id.NewRentID(), gateway.Claim{}, gateway.ErrVerification)
	reg.EmitLateFeeApplied(ctx, &rent.Rent{}, types.INR(20000))

	if c.generated.Load() != 2 || c.batches.Load() != 1 || c.rejected.Load() != 1 {
		t.Errorf("generated=%d batches=%d rejected=%d", c.generated.Load(), c.batches.Load(), c.rejected.Load())
	}
	if !strings.Contains(logs.String(), "plugin OnPaymentRejected failed") {
		t.Errorf("hook error not logged: %s", logs.String())
	}
}

func TestRegistryTimeout(t *testing.T) {
	var logs bytes.Buffer
	reg := plugin.NewRegistry().
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).
		WithTimeout(20 * time.Millisecond)
	_ = reg.Register(sleeper{})

	start := time.Now()
	reg.EmitRentGenerated(context.Background(), &rent.Rent{})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("slow plugin blocked dispatch for %s", elapsed)
	}
	if !strings.Contains(logs.String(), "plugin timeout: sleeper") {
		t.Errorf("timeout not logged: %s", logs.String())
	}
}
