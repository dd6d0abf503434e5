// Package mtpgate is a datagram message stack for peers behind NATs.
//
// Messages travel over UDP in MTP packets: a 25-byte header naming the
// transaction, its data type and its page, followed by the body. Messages
// larger than one packet are split into fragments that the receiver
// reassembles in any arrival order. Every unit is acknowledged, and the
// sender learns of success or timeout through callbacks; nothing is
// retransmitted.
//
// # Getting Started
//
// Create a node with options and a handler, then start it:
//
//	options := config.NewOptions()
//	options.ListenAddr = ":9394"
//
//	node, err := mtpgate.New(options, &peer.Callbacks{
//	    Message: func(body []byte, source, destination net.Addr) bool {
//	        fmt.Printf("%s: %s\n", source, body)
//	        return true
//	    },
//	    MessageTimeout: func(sn mtp.TransactionID, destination, source net.Addr) {
//	        log.Printf("message %s to %s was not acknowledged", sn, destination)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	node.Start()
//	sn, err := node.SendMessage(payload, remote)
//
// # Packages
//
//   - tlv: tag-length-value fields with integer, raw and read-only map values
//   - mtp: packet header, data types and fragmentation
//   - reassembly: fragment records, expiry and the sharded Engine
//   - peer: the Handler contract and the FloodGuard admission policy
//   - gate: porters, acknowledgement tracking and the worker loop
//   - hub: UDP and in-memory datagram sockets
//   - stun: STUN attributes and public address discovery
//   - config, metrics: TOML options and Prometheus collectors
//
// # Flood Protection
//
// A source may keep at most MaxIncomplete messages partially delivered.
// Fragments opening further transactions are dropped without a record
// until one of the open messages completes or expires.
package mtpgate
