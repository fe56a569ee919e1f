package pseudonym

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasIsStable(t *testing.T) {
	a := Alias("pepper", "109876543210")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Alias("pepper", "109876543210"))
	assert.Equal(t, a, New("pepper").Alias("109876543210"))
}

func TestAliasDependsOnSaltAndID(t *testing.T) {
	assert.NotEqual(t, Alias("pepper", "1"), Alias("salt", "1"))
	assert.NotEqual(t, Alias("pepper", "1"), Alias("pepper", "2"))
	assert.NotContains(t, Alias("pepper", "alice"), "alice")
}

func TestAliasEdgeCases(t *testing.T) {
	assert.Empty(t, Alias("pepper", ""))
	assert.Len(t, Alias("", "1"), 64)
	assert.Len(t, Alias(strings.Repeat("k", 200), "1"), 64)
}
