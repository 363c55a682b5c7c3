// Package smbus is the SMBus engine (S): i801-style transaction
// sequencing, controller discovery, and the SPD5 hub / Richtek PMIC /
// thermal-sensor micro-protocols layered on top of it (spec.md §4.4).
package smbus

import (
	"log"
	"os"
)

var Logger = log.New(os.Stderr, "imcsnap/smbus: ", log.LstdFlags)

// i801 host controller register offsets (spec.md §4.4/§6), relative to
// the SMBus I/O base port decoded during discovery.
const (
	regHstSts  = 0x00
	regHstCnt  = 0x02
	regHstCmd  = 0x03
	regHstAdd  = 0x04
	regHstDat0 = 0x05
	regHstDat1 = 0x06
	regBlkDat  = 0x07
	regPEC     = 0x08
	regAuxSts  = 0x0C
	regAuxCtl  = 0x0D
)

// Host status register bits.
const (
	stsByteDone    = 0x80
	stsInUse       = 0x40
	stsSMBAlert    = 0x20
	stsFailed      = 0x10
	stsBusErr      = 0x08
	stsDevErr      = 0x04
	stsIntr        = 0x02
	stsHostBusy    = 0x01
	stsErrorFlags  = stsFailed | stsBusErr | stsDevErr
	stsClearFlags  = stsByteDone | stsIntr | stsErrorFlags | stsSMBAlert
	stsAllExceptIU = 0xFF &^ stsInUse
)

// Host control register bits / transaction selectors.
const (
	cntQuick        = 0x00
	cntByte         = 0x04
	cntByteData     = 0x08
	cntWordData     = 0x0C
	cntProcCall     = 0x10
	cntBlockData    = 0x14
	cntI2CBlockData = 0x18
	cntKill         = 0x02
	cntStart        = 0x40
	cntPECEn        = 0x80
)

// Auxiliary control register bits (ICH4+).
const (
	auxCRC  = 0x01
	auxE32B = 0x02
)

const (
	i2cWrite = 0
	i2cRead  = 1
)
