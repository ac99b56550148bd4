package render

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	index    map[string]string
	indexErr error
	bodies   map[string]string
	calls    atomic.Int32
}

func (f *fakeSource) RendererTemplates(context.Context) (map[string]string, error) {
	return f.index, f.indexErr
}

func (f *fakeSource) Text(_ context.Context, ref string) (string, error) {
	f.calls.Add(1)
	body, ok := f.bodies[ref]
	if !ok {
		return "", errors.New("404 " + ref)
	}
	return body, nil
}

func TestLoaderInstallsEveryTemplate(t *testing.T) {
	src := &fakeSource{
		index: map[string]string{
			"basic":  "/t/basic",
			"forums": "/t/forums",
		},
		bodies: map[string]string{
			"/t/basic":  "{{.subject}}",
			"/t/forums": "{{.thread_title}}",
		},
	}

	reg, report, err := NewLoader(src, nil).Load(context.Background())

	require.NoError(t, err)
	assert.False(t, report.Degraded())
	assert.Equal(t, []string{"basic", "forums"}, report.Loaded)
	assert.Equal(t, []string{"basic", "forums"}, reg.Keys())
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestLoaderSettlesWithPartialFailures(t *testing.T) {
	src := &fakeSource{
		index: map[string]string{
			"basic":   "/t/basic",
			"missing": "/t/missing",
			"broken":  "/t/broken",
		},
		bodies: map[string]string{
			"/t/basic":  "{{.subject}}",
			"/t/broken": "{{.subject",
		},
	}

	reg, report, err := NewLoader(src, nil).Load(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Degraded())
	assert.Equal(t, []string{"basic"}, report.Loaded)
	assert.Contains(t, report.Failures, "missing")
	assert.Contains(t, report.Failures, "broken")
	assert.True(t, reg.Has("basic"))
	assert.False(t, reg.Has("missing"))
}

func TestLoaderIndexFailureYieldsEmptyRegistry(t *testing.T) {
	src := &fakeSource{indexErr: errors.New("boom")}

	reg, report, err := NewLoader(src, nil).Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, report.Loaded)
}

func TestLoaderEmptyIndex(t *testing.T) {
	src := &fakeSource{index: map[string]string{}}

	reg, report, err := NewLoader(src, nil).Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
	assert.False(t, report.Degraded())
}

func TestRegistryRender(t *testing.T) {
	reg := MustCompileRegistry(map[string]string{
		"basic": `{{upper .subject}} {{truncate 5 .body}} {{default "n/a" .missing}}`,
	})

	out, err := reg.Render("basic", map[string]any{"subject": "hi", "body": "abcdefgh"})
	require.NoError(t, err)
	assert.Equal(t, "HI abcd… n/a", out)

	_, err = reg.Render("nope", nil)
	assert.Error(t, err)
}

func TestCompileRejectsBadTemplate(t *testing.T) {
	_, err := Compile("bad", "{{if}}")
	assert.Error(t, err)
}
