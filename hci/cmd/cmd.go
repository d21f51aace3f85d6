// Package cmd provides marshalers for the HCI commands the host issues.
package cmd

import (
	"bytes"
	"encoding/binary"
)

func marshal(c interface{}, b []byte) error {
	buf := bytes.NewBuffer(b[:0])
	return binary.Write(buf, binary.LittleEndian, c)
}

func unmarshal(c interface{}, b []byte) error {
	buf := bytes.NewReader(b)
	return binary.Read(buf, binary.LittleEndian, c)
}
