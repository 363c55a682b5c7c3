package smbus

import (
	"time"

	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/hwerr"
)

// Richtek PMIC register addresses (spec.md §4.4/§6).
const (
	regR1A = 0x1A
	regR1B = 0x1B
	regR30 = 0x30 // ADC control
	regR31 = 0x31 // ADC read
	regR3B = 0x3B // revision
	regR3C = 0x3C // vendor id, two bytes at R3C/R3C+1
)

const richtekVendorID = 0x0A0C

// ADC channel selectors. Channel zero is the NULL channel used by the
// handshake spec.md §4.4 describes before reading a real rail.
const (
	adcChannelNull = 0x00
	adcChannelSWA  = 0x01
	adcChannelSWB  = 0x02
	adcChannelSWC  = 0x03
	adcChannelSWD  = 0x04
	adcChannel1V8  = 0x05
	adcChannel1V0  = 0x06
	adcChannelVIN  = 0x07
)

const maxHandshakeRetries = 4

// PMICReadings is the seven-channel ADC record named in spec.md §3.
type PMICReadings struct {
	SWA, SWB, SWC, SWD float64
	V1_8, V1_0, VIN    float64
}

// PMIC drives one DDR5 DIMM's power-management IC.
type PMIC struct {
	Transport Transport
	Addr      uint8 // 0x18..0x1B or 0x48..0x4B

	VendorID  bitfield.JEP106
	Revision  uint8
	IsRichtek bool
}

// ProbePMIC reads the vendor/revision record. If the vendor does not
// match Richtek, callers stop here per spec.md §4.4 ("If not Richtek,
// stop at the vendor/revision record").
func ProbePMIC(t Transport, addr uint8) (*PMIC, error) {
	lo, err := t.ReadByte(addr, regR3C)
	if err != nil {
		return nil, err
	}

	hi, err := t.ReadByte(addr, regR3C+1)
	if err != nil {
		return nil, err
	}

	rev, err := t.ReadByte(addr, regR3B)
	if err != nil {
		return nil, err
	}

	raw := uint16(lo) | uint16(hi)<<8

	p := &PMIC{
		Transport: t,
		Addr:      addr,
		VendorID:  bitfield.DecodeJEP106(hi, lo),
		Revision:  rev,
		IsRichtek: raw == richtekVendorID,
	}

	return p, nil
}

// nullHandshake performs the NULL-channel arbitration spec.md §4.4
// requires before every real ADC read: write the ADC-enable command
// targeting the NULL channel, then poll R30 until it reflects that
// command and R31 reads 0, up to maxHandshakeRetries tries.
func (p *PMIC) nullHandshake() error {
	if err := p.Transport.WriteByte(p.Addr, regR30, adcChannelNull); err != nil {
		return err
	}

	for try := 0; try < maxHandshakeRetries; try++ {
		r30, err := p.Transport.ReadByte(p.Addr, regR30)
		if err != nil {
			return err
		}

		r31, err := p.Transport.ReadByte(p.Addr, regR31)
		if err != nil {
			return err
		}

		if r30 == adcChannelNull && r31 == 0 {
			return nil
		}

		time.Sleep(time.Millisecond)
	}

	return hwerr.New(hwerr.KindTimeout, "pmic null-channel handshake")
}

// readChannel performs the two-phase handshake (NULL then target) and
// returns the raw ADC reading.
func (p *PMIC) readChannel(channel uint8) (uint8, error) {
	if err := p.nullHandshake(); err != nil {
		return 0, err
	}

	if err := p.Transport.WriteByte(p.Addr, regR30, channel); err != nil {
		return 0, err
	}

	for try := 0; try < maxHandshakeRetries; try++ {
		r30, err := p.Transport.ReadByte(p.Addr, regR30)
		if err != nil {
			return 0, err
		}

		r31, err := p.Transport.ReadByte(p.Addr, regR31)
		if err != nil {
			return 0, err
		}

		if r30 == channel && r31 != 0 {
			return r31, nil
		}

		time.Sleep(time.Millisecond)
	}

	return 0, hwerr.New(hwerr.KindTimeout, "pmic adc channel read")
}

// ReadAll walks every rail, restoring the original R30 selection on the
// way out. A failure to restore is logged, not fatal, per spec.md §4.4.
func (p *PMIC) ReadAll() (PMICReadings, error) {
	var readings PMICReadings

	original, err := p.Transport.ReadByte(p.Addr, regR30)
	if err != nil {
		return readings, err
	}

	defer func() {
		if err := p.Transport.WriteByte(p.Addr, regR30, original); err != nil {
			Logger.Printf("pmic: restore R30 to 0x%02X: %v", original, err)
		}
	}()

	channels := []struct {
		channel uint8
		scale   float64
		dst     *float64
	}{
		{adcChannelSWA, bitfield.PMICVoltageScale, &readings.SWA},
		{adcChannelSWB, bitfield.PMICVoltageScale, &readings.SWB},
		{adcChannelSWC, bitfield.PMICVoltageScale, &readings.SWC},
		{adcChannelSWD, bitfield.PMICVoltageScale, &readings.SWD},
		{adcChannel1V8, bitfield.PMICVoltageScale, &readings.V1_8},
		{adcChannel1V0, bitfield.PMICVoltageScale, &readings.V1_0},
		{adcChannelVIN, bitfield.PMICVinScale, &readings.VIN},
	}

	for _, ch := range channels {
		raw, err := p.readChannel(ch.channel)
		if err != nil {
			Logger.Printf("pmic channel 0x%02X: %v", ch.channel, err)

			continue
		}

		*ch.dst = float64(raw) * ch.scale
	}

	return readings, nil
}
