// Package kdrv is the kernel-helper transport (K): it drives a signed
// ring-0 device exposing a small fixed set of device-control codes for
// port I/O, PCI configuration space, MSRs and physical memory. It knows
// nothing about what any register means -- that is platform's job.
package kdrv

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"github.com/kramelec/imcsnap/hwerr"
)

// Logger follows the teacher's package-level *log.Logger convention
// (vmm/flag use the stdlib log package directly) so callers can redirect
// output. kdrv's own operations report failures as returned errors and
// do not write to it.
var Logger = log.New(os.Stderr, "imcsnap/kdrv: ", log.LstdFlags)

// rawTransport is the single point where this package touches the OS.
// Production code gets one from transport_windows.go; tests supply a
// fake, per spec.md §9's "strategy interface, not a fork in line" note.
type rawTransport interface {
	Ioctl(code uint32, in []byte, outLen int) ([]byte, error)
	Close() error
}

// Device is a handle to the signed kernel helper.
type Device struct {
	raw rawTransport
}

// NewDevice opens \\.\<driver-name> (path) and returns a ready Device.
// Failure here is fatal to the whole snapshot per spec.md §4.1/§7:
// DriverUnavailable.
func NewDevice(path string) (*Device, error) {
	raw, err := openWindowsTransport(path)
	if err != nil {
		return nil, hwerr.Wrap(hwerr.KindDriverUnavailable, "open "+path, err)
	}

	return &Device{raw: raw}, nil
}

// newDeviceWithTransport is used by tests to inject a fake transport.
func newDeviceWithTransport(raw rawTransport) *Device {
	return &Device{raw: raw}
}

func (d *Device) Close() error {
	return d.raw.Close()
}

// ioKindFromErr maps a transport-level failure to hwerr.KindIOError
// unless it is already classified.
func ioKindFromErr(detail string, err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(*hwerr.Error); ok { //nolint:errorlint
		return err
	}

	return hwerr.Wrap(hwerr.KindIOError, detail, err)
}

// PortRead reads size bytes (1, 2 or 4) from an I/O port.
func (d *Device) PortRead(port uint16, size int) (uint32, error) {
	var fn uint32

	switch size {
	case 1:
		fn = funcPortRead1
	case 2:
		fn = funcPortRead2
	case 4:
		fn = funcPortRead4
	default:
		return 0, hwerr.New(hwerr.KindUnsupported, fmt.Sprintf("port read size %d", size))
	}

	in := make([]byte, 4)
	binary.LittleEndian.PutUint32(in, uint32(port))

	out, err := d.raw.Ioctl(encode(fn), in, 4)
	if err != nil {
		return 0, ioKindFromErr("port_read", err)
	}

	return binary.LittleEndian.Uint32(padTo(out, 4)), nil
}

// PortWrite writes size bytes (1, 2 or 4) to an I/O port.
func (d *Device) PortWrite(port uint16, size int, value uint32) error {
	var fn uint32

	switch size {
	case 1:
		fn = funcPortWrite1
	case 2:
		fn = funcPortWrite2
	case 4:
		fn = funcPortWrite4
	default:
		return hwerr.New(hwerr.KindUnsupported, fmt.Sprintf("port write size %d", size))
	}

	in := make([]byte, 8)
	binary.LittleEndian.PutUint32(in[0:4], uint32(port))
	binary.LittleEndian.PutUint32(in[4:8], value)

	_, err := d.raw.Ioctl(encode(fn), in, 0)

	return ioKindFromErr("port_write", err)
}

// PCIConfigRead reads size bytes from PCI configuration space.
func (d *Device) PCIConfigRead(bus, dev, fun uint8, offset uint16, size int) ([]byte, error) {
	if size < 0 {
		return nil, hwerr.New(hwerr.KindUnsupported, "negative pci config size")
	}

	in := make([]byte, 20)
	binary.LittleEndian.PutUint32(in[0:4], uint32(bus))
	binary.LittleEndian.PutUint32(in[4:8], uint32(dev))
	binary.LittleEndian.PutUint32(in[8:12], uint32(fun))
	binary.LittleEndian.PutUint32(in[12:16], uint32(offset))
	binary.LittleEndian.PutUint32(in[16:20], uint32(size))

	out, err := d.raw.Ioctl(encode(funcPCIConfigRead), in, size)
	if err != nil {
		return nil, ioKindFromErr("pci_cfg_read", err)
	}

	if len(out) != size {
		return nil, hwerr.New(hwerr.KindIOError, "pci_cfg_read: short read")
	}

	return out, nil
}

// PCIConfigWrite writes data (length a multiple of 4) to PCI
// configuration space.
func (d *Device) PCIConfigWrite(bus, dev, fun uint8, offset uint16, data []byte) error {
	if len(data) == 0 || len(data)&3 != 0 {
		return hwerr.New(hwerr.KindUnsupported, "pci_cfg_write: length must be a non-zero multiple of 4")
	}

	in := make([]byte, 16+len(data))
	binary.LittleEndian.PutUint32(in[0:4], uint32(bus))
	binary.LittleEndian.PutUint32(in[4:8], uint32(dev))
	binary.LittleEndian.PutUint32(in[8:12], uint32(fun))
	binary.LittleEndian.PutUint32(in[12:16], uint32(offset))
	copy(in[16:], data)

	_, err := d.raw.Ioctl(encode(funcPCIConfigWrite), in, 0)

	return ioKindFromErr("pci_cfg_write", err)
}

// MSRRead reads a model-specific register, returning (hi, lo) 32-bit
// halves of the 64-bit value.
func (d *Device) MSRRead(reg uint32) (hi, lo uint32, err error) {
	in := make([]byte, 4)
	binary.LittleEndian.PutUint32(in, reg)

	out, err := d.raw.Ioctl(encode(funcMSRRead), in, 8)
	if err != nil {
		return 0, 0, ioKindFromErr("msr_read", err)
	}

	out = padTo(out, 8)

	return binary.LittleEndian.Uint32(out[4:8]), binary.LittleEndian.Uint32(out[0:4]), nil
}

// MSRWrite writes a model-specific register from (hi, lo) halves.
func (d *Device) MSRWrite(reg uint32, hi, lo uint32) error {
	in := make([]byte, 12)
	binary.LittleEndian.PutUint32(in[0:4], reg)
	binary.LittleEndian.PutUint32(in[4:8], lo)
	binary.LittleEndian.PutUint32(in[8:12], hi)

	_, err := d.raw.Ioctl(encode(funcMSRWrite), in, 0)

	return ioKindFromErr("msr_write", err)
}

// PhyMemRead reads size bytes of physical memory at addr.
func (d *Device) PhyMemRead(addr uint64, size int) ([]byte, error) {
	in := make([]byte, 12)
	binary.LittleEndian.PutUint64(in[0:8], addr)
	binary.LittleEndian.PutUint32(in[8:12], uint32(size))

	out, err := d.raw.Ioctl(encode(funcPhyMemRead), in, size)
	if err != nil {
		return nil, ioKindFromErr("phymem_read", err)
	}

	return out, nil
}

// PhyMemPCRead64 reads a 64-bit value at a PCI-config-derived physical
// address: baseCfgOffset is the PCI config register holding the base
// address (e.g. MCHBAR at 0x48), addrMask/addrOffset locate and align
// it, matching spec.md §4.1.
func (d *Device) PhyMemPCRead64(bus, dev, fun uint8, baseCfgOffset uint16, addrMask uint64, addrOffset uint64) (uint64, error) {
	base, err := d.PCIConfigRead(bus, dev, fun, baseCfgOffset, 8)
	if err != nil {
		return 0, err
	}

	physBase := binary.LittleEndian.Uint64(base) & addrMask

	out, err := d.PhyMemRead(physBase+addrOffset, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(padTo(out, 8)), nil
}

// PhyMemPCWrite32 writes a 32-bit value at a PCI-config-derived
// physical address (spec.md §4.1 names it). mailbox.MCHBARCarrier uses
// it to write the PCODE mailbox's data and command DWORDs.
func (d *Device) PhyMemPCWrite32(bus, dev, fun uint8, baseCfgOffset uint16, addrMask uint64, addrOffset uint64, value uint32) error {
	base, err := d.PCIConfigRead(bus, dev, fun, baseCfgOffset, 8)
	if err != nil {
		return err
	}

	physBase := binary.LittleEndian.Uint64(base) & addrMask

	in := make([]byte, 12)
	binary.LittleEndian.PutUint64(in[0:8], physBase+addrOffset)
	binary.LittleEndian.PutUint32(in[8:12], value)

	_, err = d.raw.Ioctl(encode(funcPhyMemPCWrite32), in, 0)

	return ioKindFromErr("phymem_pc_write32", err)
}

// PhyMemMap maps size bytes of physical memory starting at addr and
// returns the process-local virtual address.
func (d *Device) PhyMemMap(addr uint64, size int) (uintptr, error) {
	in := make([]byte, 12)
	binary.LittleEndian.PutUint64(in[0:8], addr)
	binary.LittleEndian.PutUint32(in[8:12], uint32(size))

	out, err := d.raw.Ioctl(encode(funcPhyMemMap), in, 8)
	if err != nil {
		return 0, ioKindFromErr("phymem_map", err)
	}

	return uintptr(binary.LittleEndian.Uint64(padTo(out, 8))), nil
}

// PhyMemUnmap releases a mapping created by PhyMemMap.
func (d *Device) PhyMemUnmap(addr uint64, size int) error {
	in := make([]byte, 12)
	binary.LittleEndian.PutUint64(in[0:8], addr)
	binary.LittleEndian.PutUint32(in[8:12], uint32(size))

	_, err := d.raw.Ioctl(encode(funcPhyMemUnmap), in, 0)

	return ioKindFromErr("phymem_unmap", err)
}

// SMBusReadByte issues the driver's smart SMBus byte-read ioctl
// (Method A of spec.md §4.4): (port, dev, cmd) -> value. ok reports
// whether the driver supports this function at all; callers fall back
// to raw i801 sequencing (Method B) when ok is false.
func (d *Device) SMBusReadByte(port uint16, dev, cmd uint8) (value uint8, ok bool, err error) {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint16(in[0:2], port)
	in[2] = dev
	in[3] = cmd

	out, err := d.raw.Ioctl(encode(funcSMBusReadByte), in, 1)
	if err != nil {
		return 0, false, ioKindFromErr("smbus_read_byte", err)
	}

	if len(out) == 0 {
		return 0, false, nil
	}

	return out[0], true, nil
}

// SMBusWriteByte issues the driver's smart SMBus byte-write ioctl.
func (d *Device) SMBusWriteByte(port uint16, dev, cmd, value uint8) (ok bool, err error) {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint16(in[0:2], port)
	in[2] = dev
	in[3] = cmd
	in[4] = value

	_, err = d.raw.Ioctl(encode(funcSMBusWriteByte), in, 0)
	if err != nil {
		return false, ioKindFromErr("smbus_write_byte", err)
	}

	return true, nil
}

// SMBusProcCall issues the driver's smart SMBus PROC_CALL ioctl,
// exchanging a 16-bit value and returning the 16-bit response.
func (d *Device) SMBusProcCall(port uint16, dev, cmd uint8, value uint16) (response uint16, ok bool, err error) {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint16(in[0:2], port)
	in[2] = dev
	in[3] = cmd
	binary.LittleEndian.PutUint16(in[4:6], value)

	out, err := d.raw.Ioctl(encode(funcSMBusProcCall), in, 2)
	if err != nil {
		return 0, false, ioKindFromErr("smbus_proc_call", err)
	}

	if len(out) < 2 {
		return 0, false, nil
	}

	return binary.LittleEndian.Uint16(out), true, nil
}

// padTo right-pads (or truncates) b to exactly n bytes, since some
// driver replies legitimately come back shorter than the fixed output
// record when the requested size is smaller.
func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}

	out := make([]byte, n)
	copy(out, b)

	return out
}
