package kdrv

// Device control code layout, spec.md §4.1/§6:
//
//	code = (deviceType << 16) | (access << 14) | (function << 2) | method
//
// driverDeviceType, accessAny and methodBuffered are fixed for every
// function this driver exposes; only function varies per operation.
const (
	driverDeviceType = 0x9C40
	accessAny        = 0 // FILE_ANY_ACCESS
	methodBuffered   = 0 // METHOD_BUFFERED
)

// Function codes, one per K operation (spec.md §4.1).
const (
	funcPortRead1 = iota + 0x900
	funcPortRead2
	funcPortRead4
	funcPortWrite1
	funcPortWrite2
	funcPortWrite4
	funcPCIConfigRead
	funcPCIConfigWrite
	funcMSRRead
	funcMSRWrite
	funcPhyMemRead
	// PhyMemPCRead64 is implemented as PCIConfigRead+PhyMemRead, not a
	// dedicated ioctl, so no funcPhyMemPCRead64 code is declared here.
	funcPhyMemPCWrite32
	funcPhyMemMap
	funcPhyMemUnmap

	// Method A "smart" SMBus ioctls (spec.md §4.4): the driver
	// sequences the i801 controller itself so smbus does not need to
	// bit-bang SMBHSTCNT/SMBHSTSTS directly when this path is available.
	funcSMBusReadByte
	funcSMBusWriteByte
	funcSMBusProcCall
)

// encode computes the IOCTL code for function, using the driver's fixed
// device type/access/method triple.
func encode(function uint32) uint32 {
	return (uint32(driverDeviceType) << 16) | (uint32(accessAny) << 14) | (function << 2) | uint32(methodBuffered)
}
