// Package hub provides datagram sockets for the gate runtime.
//
// UDPHub reads a net.PacketConn on a background goroutine and queues copies
// of each datagram, so Receive never blocks. MemoryNetwork connects
// MemoryHubs in process and can drop datagrams on demand, which makes it
// the usual choice in tests.
package hub
