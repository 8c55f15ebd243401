package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationState(t *testing.T) {
	m := &Migration{Name: "luv-nft", Steps: []*Step{
		deploy("IterableMapping"),
		link("LuvNFT", "IterableMapping"),
		deploy("LuvNFT"),
		call("LuvNFT", "mint"),
	}}

	t.Run("new runs get distinct ids", func(t *testing.T) {
		a := NewMigrationState(m, "development", 1337)
		b := NewMigrationState(m, "development", 1337)
		assert.NotEmpty(t, a.RunID)
		assert.NotEqual(t, a.RunID, b.RunID)
		assert.Equal(t, 4, a.Steps)
		assert.Equal(t, -1, a.FailedAt)
		assert.Equal(t, RunStatusRunning, a.Status)
	})

	t.Run("mark completed is idempotent", func(t *testing.T) {
		s := NewMigrationState(m, "development", 1337)
		s.MarkCompleted(0)
		s.MarkCompleted(0)
		assert.Equal(t, []int{0}, s.Completed)
		assert.True(t, s.IsCompleted(0))
		assert.False(t, s.IsCompleted(1))
	})

	t.Run("remaining replays links whose target is not deployed", func(t *testing.T) {
		s := NewMigrationState(m, "development", 1337)
		s.MarkCompleted(0)
		s.MarkCompleted(1)
		s.Deployed["IterableMapping"] = &DeployedContract{ID: "IterableMapping"}
		assert.Equal(t, []int{1, 2, 3}, s.Remaining(m))
	})

	t.Run("remaining skips links once the target is deployed", func(t *testing.T) {
		s := NewMigrationState(m, "development", 1337)
		for i := 0; i < 3; i++ {
			s.MarkCompleted(i)
		}
		s.Deployed["IterableMapping"] = &DeployedContract{ID: "IterableMapping"}
		s.Deployed["LuvNFT"] = &DeployedContract{ID: "LuvNFT"}
		assert.Equal(t, []int{3}, s.Remaining(m))
	})
}
