// Package wire implements the MTProto binary serialization primitives:
// little-endian integer/string/vector encoding and the small set of wire
// tags the session sender must recognize to route an inbound payload.
package wire

// Constructor numbers for the handful of envelope-level objects the
// sender must parse itself, before any update catalog gets a say.
// Values come from the public MTProto schema (core.telegram.org/schema).
const (
	CRCVector   uint32 = 0x1cb5c415
	CRCBoolTrue uint32 = 0x997275b5
	CRCBoolFalse uint32 = 0xbc799737

	CRCRPCResult          uint32 = 0xf35c6d01
	CRCPong               uint32 = 0x347773c5
	CRCMsgContainer       uint32 = 0x73f1f8dc
	CRCGzipPacked         uint32 = 0x3072cfa1
	CRCBadServerSalt      uint32 = 0xedab447b
	CRCBadMsgNotification uint32 = 0xa7eff811
	CRCMsgsAck            uint32 = 0x62d6b459
	CRCRPCError           uint32 = 0x2144ca19
)
