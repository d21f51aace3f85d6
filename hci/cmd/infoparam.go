package cmd

// ReadBDADDR implements Read BD_ADDR (0x04|0x0009) [Vol 2, Part E, 7.4.6]
type ReadBDADDR struct{}

func (c *ReadBDADDR) OpCode() int { return 0x04<<10 | 0x0009 }
func (c *ReadBDADDR) Len() int    { return 0 }

func (c *ReadBDADDR) Marshal(b []byte) error { return marshal(c, b) }

// ReadBDADDRRP ...
type ReadBDADDRRP struct {
	Status uint8
	BDADDR [6]byte
}

func (c *ReadBDADDRRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// ReadLocalSupportedFeatures implements Read Local Supported Features (0x04|0x0003) [Vol 2, Part E, 7.4.3]
type ReadLocalSupportedFeatures struct{}

func (c *ReadLocalSupportedFeatures) OpCode() int { return 0x04<<10 | 0x0003 }
func (c *ReadLocalSupportedFeatures) Len() int    { return 0 }

func (c *ReadLocalSupportedFeatures) Marshal(b []byte) error { return marshal(c, b) }

// ReadLocalSupportedFeaturesRP ...
type ReadLocalSupportedFeaturesRP struct {
	Status      uint8
	LMPFeatures uint64
}

func (c *ReadLocalSupportedFeaturesRP) Unmarshal(b []byte) error { return unmarshal(c, b) }
