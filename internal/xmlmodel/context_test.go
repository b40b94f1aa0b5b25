package xmlmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenContext_RootAndNamedChildren(t *testing.T) {
	xml := `<application app_id="118838" status="ACTIVE">
  <employment status="EMPLOYED" years="5"/>
</application>`

	doc, err := Parse([]byte(xml))
	require.NoError(t, err)

	ctx := FlattenContext(doc, []string{"employment"})

	assert.Equal(t, "118838", ctx.Lookup("app_id").AsString())
	assert.Equal(t, "ACTIVE", ctx.Lookup("status").AsString())
	assert.Equal(t, "EMPLOYED", ctx.Lookup("employment.status").AsString())
	assert.Equal(t, "5", ctx.Lookup("employment.years").AsString())
}

func TestFlattenContext_MissingChildIsSkipped(t *testing.T) {
	doc, err := Parse([]byte(`<application app_id="1"/>`))
	require.NoError(t, err)

	ctx := FlattenContext(doc, []string{"employment"})

	assert.True(t, ctx.Lookup("employment.status").IsNull())
}
