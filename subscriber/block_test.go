package subscriber

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
)

func TestBlockSubscriberAdvancesHeight(t *testing.T) {
	cache := dal.NewBlockCache()
	s := NewBlock(cache, log.DefaultLogger())

	require.NoError(t, s.Notify(context.Background(), &event.NewBlock{ChainID: 7, BlockHeight: 10}))
	require.Equal(t, uint64(10), cache.Height(7))

	require.NoError(t, s.Notify(context.Background(), &event.NewBlock{ChainID: 7, BlockHeight: 5}))
	require.Equal(t, uint64(10), cache.Height(7))

	require.NoError(t, s.Notify(context.Background(), &event.NewBlock{ChainID: 7, BlockHeight: 11}))
	require.Equal(t, uint64(11), cache.Height(7))
}

func TestBlockSubscriberRejectsWrongEventType(t *testing.T) {
	s := NewBlock(dal.NewBlockCache(), log.DefaultLogger())
	require.Error(t, s.Notify(context.Background(), &event.NewDKGTask{}))
}
