package orders

import (
	"regexp"
	"strings"
	"testing"

	"storefront/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableColumns(t *testing.T, table string) map[string]bool {
	t.Helper()
	re := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ` + table + ` \((.*?)\n\);`)
	m := re.FindStringSubmatch(db.Schema)
	require.NotNil(t, m, "table %s missing from schema", table)

	cols := map[string]bool{}
	for _, line := range strings.Split(m[1], "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			cols[strings.TrimSuffix(f[0], ",")] = true
		}
	}
	return cols
}

func TestOrderColumnsExistInSchema(t *testing.T) {
	cols := tableColumns(t, "orders")
	for _, c := range strings.Split(orderColumns, ",") {
		c = strings.TrimSpace(c)
		assert.True(t, cols[c], "orders.%s is selected but not in schema", c)
	}
	// UpdateStatus stamps it
	assert.True(t, cols["updated_at"])
}
