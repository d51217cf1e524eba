package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemoTurn(t *testing.T) {
	t.Run("regular turns succeed with a canned exchange", func(t *testing.T) {
		turn := demoTurn("session_test", 0)

		assert.Equal(t, "session_test", turn.SessionID)
		assert.True(t, turn.Success)
		assert.Equal(t, demoExchanges[0].user, turn.UserMessage)
		assert.Equal(t, demoExchanges[0].agent, turn.AgentResponse)
		assert.GreaterOrEqual(t, turn.ResponseTimeMS, demoExchanges[0].baseMS)
		assert.Equal(t, "demo-room", turn.RoomName)
		assert.Equal(t, "openai/gpt-4.1-mini", turn.Metadata["llm_model"])
		assert.Empty(t, turn.ErrorMessage)
	})

	t.Run("every fifth turn fails with a pipeline error", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			turn := demoTurn("session_test", i)
			if (i+1)%5 == 0 {
				assert.False(t, turn.Success, "turn %d", i)
				assert.NotEmpty(t, turn.ErrorMessage, "turn %d", i)
				assert.Empty(t, turn.AgentResponse, "turn %d", i)
			} else {
				assert.True(t, turn.Success, "turn %d", i)
				assert.Empty(t, turn.ErrorMessage, "turn %d", i)
			}
		}
	})

	t.Run("exchanges wrap around", func(t *testing.T) {
		turn := demoTurn("session_test", len(demoExchanges))
		assert.Equal(t, demoExchanges[0].user, turn.UserMessage)
	})

	t.Run("failures rotate through the canned errors", func(t *testing.T) {
		first := demoTurn("session_test", 4)
		second := demoTurn("session_test", 9)

		assert.Equal(t, demoFailures[0], first.ErrorMessage)
		assert.Equal(t, demoFailures[1], second.ErrorMessage)
	})
}
