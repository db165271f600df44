package tutor

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rianlab/rianhub/internal/domain/shared"
)

func TestNewSession(t *testing.T) {
	s, err := NewSession("s1", "l1", "", shared.LangEnglish)
	require.NoError(t, err)
	assert.Equal(t, shared.LangEnglish, s.Language)
	assert.Empty(t, s.Messages)

	// Invalid language falls back to Thai.
	s, err = NewSession("s1", "l1", "", "xx")
	require.NoError(t, err)
	assert.Equal(t, shared.LangThai, s.Language)

	_, err = NewSession("", "l1", "", shared.LangThai)
	assert.Error(t, err)
}

func TestSession_Append(t *testing.T) {
	s, err := NewSession("s1", "l1", "course-1", shared.LangThai)
	require.NoError(t, err)
	now := time.Now()

	require.NoError(t, s.Append(Message{ID: "m1", Role: RoleLearner, Content: "ไวยากรณ์คืออะไร", CreatedAt: now}))
	require.NoError(t, s.Append(Message{ID: "m2", Role: RoleAssistant, Content: "ไวยากรณ์คือ...", CreatedAt: now.Add(time.Second)}))
	assert.Len(t, s.Messages, 2)
	assert.Equal(t, now.Add(time.Second), s.UpdatedAt)

	assert.Error(t, s.Append(Message{Role: RoleLearner, Content: ""}))
	assert.Error(t, s.Append(Message{Role: "narrator", Content: "hi"}))
	assert.Error(t, s.Append(Message{Role: RoleLearner, Content: strings.Repeat("x", MaxMessageLength+1)}))
}

func TestSession_Window(t *testing.T) {
	s, err := NewSession("s1", "l1", "", shared.LangEnglish)
	require.NoError(t, err)

	for i := 0; i < WindowSize+7; i++ {
		require.NoError(t, s.Append(Message{
			ID:      fmt.Sprintf("m%d", i),
			Role:    RoleLearner,
			Content: fmt.Sprintf("question %d", i),
		}))
	}

	w := s.Window()
	require.Len(t, w, WindowSize)
	assert.Equal(t, "m7", w[0].ID, "window keeps the newest turns")
	assert.Equal(t, fmt.Sprintf("m%d", WindowSize+6), w[len(w)-1].ID)
}

func TestSession_LastAssistantMessage(t *testing.T) {
	s, err := NewSession("s1", "l1", "", shared.LangEnglish)
	require.NoError(t, err)
	assert.Nil(t, s.LastAssistantMessage())

	require.NoError(t, s.Append(Message{ID: "m1", Role: RoleLearner, Content: "hi"}))
	require.NoError(t, s.Append(Message{ID: "m2", Role: RoleAssistant, Content: "hello"}))
	require.NoError(t, s.Append(Message{ID: "m3", Role: RoleLearner, Content: "more"}))

	last := s.LastAssistantMessage()
	require.NotNil(t, last)
	assert.Equal(t, "m2", last.ID)
}
