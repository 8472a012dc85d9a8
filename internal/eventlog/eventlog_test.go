package eventlog_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-failedq/internal/db/testutil"
	"github.com/mind-engage/mindengage-failedq/internal/eventlog"
)

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	r := eventlog.NewRepo(testutil.DB(t))

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Append(ctx, eventlog.Entry{
			Hook:     "ays_finish_quiz",
			Key:      fmt.Sprintf("u%d:5", i),
			DataJSON: `{"failed":1}`,
		}))
	}

	got, err := r.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u3:5", got[0].Key)
	assert.Equal(t, "u2:5", got[1].Key)
	assert.Equal(t, "local", got[0].SiteID)
	assert.Greater(t, got[0].Seq, got[1].Seq)
}
