package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBus(0)

	exact, err := b.Subscribe(ctx, domain.ChannelLedgerEvents)
	require.NoError(t, err)
	pattern, err := b.Subscribe(ctx, "ledger:*")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, domain.ChannelLedgerEvents, []byte("one")))
	require.NoError(t, b.Publish(ctx, "other", []byte("two")))

	assert.Equal(t, "one", string(receive(t, exact)))
	assert.Equal(t, "one", string(receive(t, pattern)))

	cancel()
	_, open := <-exact
	for open {
		_, open = <-exact
	}
}

func TestStream(t *testing.T) {
	ctx := context.Background()
	b := NewBus(2)

	for _, op := range []string{domain.OpBond, domain.OpRenew, domain.OpWithdraw} {
		require.NoError(t, b.StreamAppend(ctx, domain.StreamLedgerJournal, map[string]any{"op": op}))
	}

	all, err := b.StreamRead(ctx, domain.StreamLedgerJournal, "0", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2-0", all[0].ID)
	assert.Equal(t, domain.OpRenew, all[0].Values["op"])

	tail, err := b.StreamRead(ctx, domain.StreamLedgerJournal, all[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, domain.OpWithdraw, tail[0].Values["op"])

	none, err := b.StreamRead(ctx, "missing", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
