package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adList struct {
	b []byte
}

func (l *adList) add(typ byte, data ...byte) *adList {
	l.b = append(l.b, byte(len(data)+1), typ)
	l.b = append(l.b, data...)
	return l
}

func (l *adList) raw(b ...byte) *adList {
	l.b = append(l.b, b...)
	return l
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil)
	assert.Equal(t, ErrEmpty, err)

	_, err = Parse([]byte{})
	assert.Equal(t, ErrEmpty, err)
}

func TestParseLocalName(t *testing.T) {
	rec, err := Parse((&adList{}).add(typeNameComplete, 'w', 'i', 'd', 'g', 'e', 't').b)
	require.NoError(t, err)
	assert.Equal(t, "widget", rec.LocalName)
	assert.True(t, rec.NameComplete)

	rec, err = Parse((&adList{}).add(typeNameShortened, 'w', 'i', 'd').b)
	require.NoError(t, err)
	assert.Equal(t, "wid", rec.LocalName)
	assert.False(t, rec.NameComplete)
}

func TestParseCompleteNameWins(t *testing.T) {
	// the complete name is kept no matter which structure comes first
	l := (&adList{}).
		add(typeNameComplete, 'w', 'i', 'd', 'g', 'e', 't').
		add(typeNameShortened, 'w', 'i', 'd')
	rec, err := Parse(l.b)
	require.NoError(t, err)
	assert.Equal(t, "widget", rec.LocalName)

	l = (&adList{}).
		add(typeNameShortened, 'w', 'i', 'd').
		add(typeNameComplete, 'w', 'i', 'd', 'g', 'e', 't')
	rec, err = Parse(l.b)
	require.NoError(t, err)
	assert.Equal(t, "widget", rec.LocalName)
}

func TestParseFlagsAndTxPower(t *testing.T) {
	l := (&adList{}).
		add(typeFlags, 0x06).
		add(typeTxPower, 0xf4) // -12 dBm
	rec, err := Parse(l.b)
	require.NoError(t, err)

	assert.True(t, rec.HasFlags)
	assert.EqualValues(t, 0x06, rec.Flags)
	assert.True(t, rec.HasTxPower)
	assert.EqualValues(t, -12, rec.TxPower)
}

func TestParseServices(t *testing.T) {
	l := (&adList{}).
		add(typeUUID16Complete, 0x0d, 0x18, 0x0f, 0x18).
		add(typeUUID16Incomplete, 0x0a, 0x18)
	rec, err := Parse(l.b)
	require.NoError(t, err)

	require.Len(t, rec.Services, 3)
	assert.Equal(t, "180d", rec.Services[0].String())
	assert.Equal(t, "180f", rec.Services[1].String())
	assert.Equal(t, "180a", rec.Services[2].String())
}

func TestParseService128(t *testing.T) {
	u := make([]byte, 16)
	for i := range u {
		u[i] = byte(i)
	}
	rec, err := Parse((&adList{}).add(typeUUID128Complete, u...).b)
	require.NoError(t, err)

	require.Len(t, rec.Services, 1)
	assert.Equal(t, UUID(u), rec.Services[0])
	assert.Equal(t, "0f0e0d0c0b0a09080706050403020100", rec.Services[0].String())
}

func TestParseSolicited(t *testing.T) {
	rec, err := Parse((&adList{}).add(typeSolicited16, 0x12, 0x18).b)
	require.NoError(t, err)

	assert.Empty(t, rec.Services)
	require.Len(t, rec.Solicited, 1)
	assert.Equal(t, "1812", rec.Solicited[0].String())
}

func TestParseServiceData(t *testing.T) {
	rec, err := Parse((&adList{}).add(typeServiceData16, 0x0d, 0x18, 0x01, 0x48).b)
	require.NoError(t, err)

	require.Contains(t, rec.ServiceData, "180d")
	assert.Equal(t, []byte{0x01, 0x48}, rec.ServiceData["180d"])
}

func TestParseServiceDataAppends(t *testing.T) {
	l := (&adList{}).
		add(typeServiceData16, 0x0d, 0x18, 0x01).
		add(typeServiceData16, 0x0d, 0x18, 0x02)
	rec, err := Parse(l.b)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x01, 0x02}, rec.ServiceData["180d"])
}

func TestParseManufacturerData(t *testing.T) {
	rec, err := Parse((&adList{}).add(typeManufacturer, 0x4c, 0x00, 0xaa).b)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4c, 0x00, 0xaa}, rec.ManufacturerData)
}

func TestParseManufacturerDataScanResponse(t *testing.T) {
	// the second structure repeats the company id; it is stripped
	l := (&adList{}).
		add(typeManufacturer, 0x4c, 0x00, 0xaa).
		add(typeManufacturer, 0x4c, 0x00, 0xbb, 0xcc)
	rec, err := Parse(l.b)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x4c, 0x00, 0xaa, 0xbb, 0xcc}, rec.ManufacturerData)
}

func TestParseSkipsUnknownTypes(t *testing.T) {
	l := (&adList{}).
		add(0x19, 0xc1, 0x03). // appearance, not decoded
		add(typeNameComplete, 'x')
	rec, err := Parse(l.b)
	require.NoError(t, err)
	assert.Equal(t, "x", rec.LocalName)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{"zero length", (&adList{}).raw(0x00, typeFlags, 0x06).b},
		{"overruns list", (&adList{}).raw(0x05, typeNameComplete, 'x').b},
		{"uuid list remainder", (&adList{}).add(typeUUID16Complete, 0x0d, 0x18, 0xbb).b},
		{"empty uuid list", (&adList{}).add(typeUUID16Complete).b},
		{"service data too short", (&adList{}).add(typeServiceData128, 0x01, 0x02).b},
		{"empty flags", (&adList{}).add(typeFlags).b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.b)
			assert.Error(t, err)
			assert.NotNil(t, rec, "partial record still returned")
		})
	}
}

func TestParseMalformedKeepsEarlierStructures(t *testing.T) {
	l := (&adList{}).
		add(typeNameComplete, 'w', 'i', 'd', 'g', 'e', 't').
		raw(0x09, typeManufacturer, 0x4c) // truncated
	rec, err := Parse(l.b)
	assert.Error(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "widget", rec.LocalName)
}
