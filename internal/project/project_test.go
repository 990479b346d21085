package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/internal/errs"
)

func TestCreateGetListDeleteRoundTrip(t *testing.T) {
	r := NewRegistry()
	p := r.Create("my-app", "/repos/my-app")
	require.NotEmpty(t, p.ID)
	assert.Equal(t, "my-app", p.Name)

	got, err := r.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	assert.Len(t, r.List(), 1)

	require.NoError(t, r.Delete(p.ID))
	_, err = r.Get(p.ID)
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.Empty(t, r.List())
}

func TestGetUnknownProject(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestDeleteUnknownProjectIsNotFound(t *testing.T) {
	r := NewRegistry()
	err := r.Delete("nope")
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestCreateAssignsDistinctIDs(t *testing.T) {
	r := NewRegistry()
	a := r.Create("a", "/a")
	b := r.Create("b", "/b")
	assert.NotEqual(t, a.ID, b.ID)
}
