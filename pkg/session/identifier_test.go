package session

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIDSanitizesPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "user", want: "user-"},
		{prefix: "  My Session ", want: "my-session-"},
		{prefix: "a/b?c", want: "a-b-c-"},
		{prefix: "", want: "session-"},
		{prefix: "???", want: "session-"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id := GenerateID(tt.prefix)
			assert.True(t, strings.HasPrefix(id, tt.want), id)
			assert.Len(t, id, len(tt.want)+26)
			assert.True(t, ValidID(id))
		})
	}
}

func TestGenerateIDIsUniqueAcrossGoroutines(t *testing.T) {
	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := GenerateID("s")
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("u1"))
	assert.True(t, ValidID("user_1.tab:2"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("has space"))
	assert.False(t, ValidID("../etc"))
	assert.False(t, ValidID(strings.Repeat("a", 129)))
}
