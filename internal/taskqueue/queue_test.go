package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailableTasksRespectsDependencyOrder(t *testing.T) {
	q := New()
	q.AddTask("a", nil)
	q.AddTask("b", []string{"a"})
	q.AddTask("c", []string{"a", "b"})

	assert.Equal(t, []string{"a"}, q.AvailableTasks())

	q.MarkCompleted("a")
	assert.Equal(t, []string{"b"}, q.AvailableTasks())

	q.MarkCompleted("b")
	assert.Equal(t, []string{"c"}, q.AvailableTasks())
}

func TestIsCompleteAndRemaining(t *testing.T) {
	q := New()
	q.AddTask("a", nil)
	q.AddTask("b", []string{"a"})

	assert.False(t, q.IsComplete())
	assert.Equal(t, 2, q.Remaining())

	q.MarkCompleted("a")
	q.MarkCompleted("b")
	assert.True(t, q.IsComplete())
	assert.Equal(t, 0, q.Remaining())
}

func TestMarkCompletedOnUnknownIDIsANoOp(t *testing.T) {
	q := New()
	q.AddTask("a", nil)
	q.MarkCompleted("does-not-exist")
	assert.Equal(t, []string{"a"}, q.AvailableTasks())
}

func TestAvailableTasksExcludesAlreadyCompleted(t *testing.T) {
	q := New()
	q.AddTask("a", nil)
	q.MarkCompleted("a")
	assert.Empty(t, q.AvailableTasks())
}
