// Package parser decodes AD structure lists, the length/type/data
// triples carried in LE advertising data, scan responses and the
// extended inquiry response.
package parser

import (
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/go-bt/bthost/sliceops"
)

// ErrEmpty is returned for a nil or zero-length AD list.
var ErrEmpty = errors.New("empty AD list")

// AD types.
// https://www.bluetooth.org/en-us/specification/assigned-numbers/generic-access-profile
const (
	typeFlags             = 0x01
	typeUUID16Incomplete  = 0x02
	typeUUID16Complete    = 0x03
	typeUUID32Incomplete  = 0x04
	typeUUID32Complete    = 0x05
	typeUUID128Incomplete = 0x06
	typeUUID128Complete   = 0x07
	typeNameShortened     = 0x08
	typeNameComplete      = 0x09
	typeTxPower           = 0x0a
	typeSolicited16       = 0x14
	typeSolicited128      = 0x15
	typeServiceData16     = 0x16
	typeSolicited32       = 0x1f
	typeServiceData32     = 0x20
	typeServiceData128    = 0x21
	typeManufacturer      = 0xff
)

// uuidSizes maps the list-valued AD types to their element width.
var uuidSizes = map[byte]int{
	typeUUID16Incomplete:  2,
	typeUUID16Complete:    2,
	typeUUID32Incomplete:  4,
	typeUUID32Complete:    4,
	typeUUID128Incomplete: 16,
	typeUUID128Complete:   16,
	typeSolicited16:       2,
	typeSolicited32:       4,
	typeSolicited128:      16,
}

// serviceDataSizes maps the service-data AD types to their UUID prefix
// width.
var serviceDataSizes = map[byte]int{
	typeServiceData16:  2,
	typeServiceData32:  4,
	typeServiceData128: 16,
}

// UUID is a service UUID as it appears on the wire: little-endian,
// 2, 4 or 16 bytes long.
type UUID []byte

// String renders the UUID MSB-first, the way it is printed.
func (u UUID) String() string {
	return hex.EncodeToString(sliceops.SwapBuf(u))
}

// Record is the decoded view of one AD structure list. An advertisement
// and its scan response are parsed as a single concatenated list.
type Record struct {
	Flags    byte
	HasFlags bool

	// LocalName is the shortened name until a complete one is seen.
	LocalName    string
	NameComplete bool

	TxPower    int8
	HasTxPower bool

	Services  []UUID
	Solicited []UUID

	// ServiceData is keyed by UUID.String of the prefix UUID.
	ServiceData map[string][]byte

	// ManufacturerData starts with the company id; the repeated id of a
	// scan-response structure is stripped before appending.
	ManufacturerData []byte
}

// Parse decodes b. On a malformed structure it returns the record
// decoded so far together with the error; unknown AD types are skipped.
func Parse(b []byte) (*Record, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}

	r := &Record{}
	for i := 0; i+1 < len(b); {
		// length at offset 0 counts the type byte and the data
		length := int(b[i])
		if length < 1 {
			return r, errors.Errorf("bad AD length %d at offset %d", length, i)
		}
		if i+length >= len(b) {
			return r, errors.Errorf("AD structure at offset %d overruns the list: want %d bytes, have %d", i, i+length+1, len(b))
		}

		typ := b[i+1]
		data := b[i+2 : i+1+length]
		if err := r.decode(typ, data); err != nil {
			return r, errors.Wrapf(err, "AD type 0x%02x at offset %d", typ, i)
		}

		i += length + 1
	}

	return r, nil
}

func (r *Record) decode(typ byte, data []byte) error {
	if size, ok := uuidSizes[typ]; ok {
		list, err := splitUUIDs(data, size)
		if err != nil {
			return err
		}
		switch typ {
		case typeSolicited16, typeSolicited32, typeSolicited128:
			r.Solicited = append(r.Solicited, list...)
		default:
			r.Services = append(r.Services, list...)
		}
		return nil
	}

	if size, ok := serviceDataSizes[typ]; ok {
		if len(data) < size {
			return errors.Errorf("service data shorter than its %d-byte UUID", size)
		}
		if r.ServiceData == nil {
			r.ServiceData = make(map[string][]byte)
		}
		key := UUID(data[:size]).String()
		r.ServiceData[key] = append(r.ServiceData[key], data[size:]...)
		return nil
	}

	switch typ {
	case typeFlags:
		if len(data) < 1 {
			return errors.New("empty flags")
		}
		r.Flags, r.HasFlags = data[0], true
	case typeNameComplete:
		r.LocalName, r.NameComplete = string(data), true
	case typeNameShortened:
		if !r.NameComplete {
			r.LocalName = string(data)
		}
	case typeTxPower:
		if len(data) < 1 {
			return errors.New("empty tx power")
		}
		r.TxPower, r.HasTxPower = int8(data[0]), true
	case typeManufacturer:
		if len(data) < 2 {
			return errors.New("manufacturer data shorter than the company id")
		}
		if len(r.ManufacturerData) == 0 {
			r.ManufacturerData = append(r.ManufacturerData, data...)
		} else {
			// the scan response repeats the company id
			r.ManufacturerData = append(r.ManufacturerData, data[2:]...)
		}
	}

	return nil
}

func splitUUIDs(data []byte, size int) ([]UUID, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, errors.Errorf("UUID list length %d is not a multiple of %d", len(data), size)
	}

	list := make([]UUID, 0, len(data)/size)
	for i := 0; i < len(data); i += size {
		u := make(UUID, size)
		copy(u, data[i:i+size])
		list = append(list, u)
	}

	return list, nil
}
