package export

import (
	"bytes"
	"testing"

	"github.com/prospect-scanner/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestToXLSX(t *testing.T) {
	records := []models.Prospect{
		{Name: "Jo, Ann", PhoneNumber: "01712345678", Email: "a@b.com"},
		{Name: "Bob", Company: "Acme"},
	}

	data, err := ToXLSX(records)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(XLSXSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, models.ProspectColumns, rows[0])
	assert.Equal(t, "Jo, Ann", rows[1][0])
	assert.Equal(t, "01712345678", rows[1][1])
	assert.Equal(t, "a@b.com", rows[1][3])
	assert.Equal(t, "Acme", rows[2][2])
}
