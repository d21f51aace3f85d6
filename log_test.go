package bthost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerFields(t *testing.T) {
	l := buildDefaultLogger()
	dl, ok := l.(*defaultLogger)
	require.True(t, ok)
	assert.Equal(t, "bthost", dl.Entry.Data["module"])

	child := l.ChildLogger(map[string]interface{}{"pkg": "hci"})
	cl, ok := child.(*defaultLogger)
	require.True(t, ok)
	assert.Equal(t, "bthost", cl.Entry.Data["module"])
	assert.Equal(t, "hci", cl.Entry.Data["pkg"])
}

func TestSetLogger(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	custom := orig.ChildLogger(map[string]interface{}{"test": "custom"})
	SetLogger(custom)
	assert.Same(t, custom, GetLogger())
}
