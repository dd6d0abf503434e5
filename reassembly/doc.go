// Package reassembly collects MTP message fragments and hands back complete
// messages.
//
// # Records
//
// An [Assemble] accumulates the fragments of one transaction from one source
// to one destination. Fragments are kept sorted by offset and a fragment
// whose offset is already present is rejected as a duplicate without error:
// a sender may retransmit a page it does not know was delivered. A record is
// complete once it holds as many fragments as the declared page count.
// Because every accepted offset is below the page count and offsets are
// unique, a complete record always covers 0..pages-1; [mtp.Join] verifies
// this again when the message is packed.
//
// An [Arrival] is an Assemble with an idle expiry that moves forward on every
// accepted fragment.
//
// # Tables
//
// A [Packer] holds the arrivals between one source and destination pair and
// is not safe for concurrent use. The [Engine] owns every packer, shards them
// across independently locked tables and is safe for concurrent use.
//
// # Expiry
//
// The engine never starts timers. Callers drive [Engine.Sweep] periodically;
// expired records are removed and their fragments are handed to the
// configured [Recycler].
package reassembly
