package stun

import "github.com/opd-ai/mtpgate/tlv"

// Attribute tags from RFC 5389, RFC 5766 and RFC 8445.
const (
	AttrMappedAddress      tlv.Tag = 0x0001
	AttrUsername           tlv.Tag = 0x0006
	AttrMessageIntegrity   tlv.Tag = 0x0008
	AttrErrorCode          tlv.Tag = 0x0009
	AttrUnknownAttributes  tlv.Tag = 0x000A
	AttrChannelNumber      tlv.Tag = 0x000C
	AttrLifetime           tlv.Tag = 0x000D
	AttrXorPeerAddress     tlv.Tag = 0x0012
	AttrData               tlv.Tag = 0x0013
	AttrRealm              tlv.Tag = 0x0014
	AttrNonce              tlv.Tag = 0x0015
	AttrXorRelayedAddress  tlv.Tag = 0x0016
	AttrRequestedTransport tlv.Tag = 0x0019
	AttrXorMappedAddress   tlv.Tag = 0x0020
	AttrPriority           tlv.Tag = 0x0024
	AttrUseCandidate       tlv.Tag = 0x0025
	AttrSoftware           tlv.Tag = 0x8022
	AttrFingerprint        tlv.Tag = 0x8028
	AttrIceControlled      tlv.Tag = 0x8029
	AttrIceControlling     tlv.Tag = 0x802A
)

// Registry returns the kinds of the integer-valued attributes. Everything
// else decodes raw.
func Registry() *tlv.Registry {
	return tlv.NewRegistry().
		Register(AttrChannelNumber, tlv.KindUint32).
		Register(AttrLifetime, tlv.KindUint32).
		Register(AttrRequestedTransport, tlv.KindUint32).
		Register(AttrPriority, tlv.KindUint32).
		Register(AttrFingerprint, tlv.KindUint32)
}

// Codec encodes and parses STUN attribute lists.
var Codec = tlv.Codec{Registry: Registry(), Padding: 4}
