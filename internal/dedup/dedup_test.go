package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/correlator-io/xmlextract/internal/mapping"
)

func TestKeyTuple_SingleColumn(t *testing.T) {
	key := KeySpec{Table: "contact_base", Columns: []string{"con_id"}}

	assert.Equal(t, "1", keyTuple(key, mapping.Row{"con_id": "1"}))
}

func TestKeyTuple_CompositeColumnsAreOrderSensitive(t *testing.T) {
	key := KeySpec{Table: "contact_address", Columns: []string{"con_id", "address_type_enum"}}

	a := keyTuple(key, mapping.Row{"con_id": "1", "address_type_enum": 2})
	b := keyTuple(key, mapping.Row{"con_id": "2", "address_type_enum": 1})

	assert.NotEqual(t, a, b)
}

func TestFilterDuplicates_EmptyInputShortCircuits(t *testing.T) {
	survivors, skipped, err := FilterDuplicates(nil, nil, KeySpec{Table: "t", Columns: []string{"id"}}, nil)

	assert.NoError(t, err)
	assert.Empty(t, survivors)
	assert.Equal(t, 0, skipped)
}
