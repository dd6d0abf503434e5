// Package gate drives MTP traffic between a Hub and per-peer policy.
//
// A BaseGate owns one Hub, shares a reassembly Engine and keeps a Porter for
// every remote address it hears from. Each call to Process pumps the hub and
// lets porters decode and dispatch what they received:
//
//	Command          -> Handler.OnReceivedCommand, answered by CommandResponse
//	Message          -> Handler.OnReceivedMessage, answered by MessageResponse
//	MessageFragment  -> Handler.CheckFragment, Engine.Insert, MessageResponse per page
//	*Response        -> completes the matching outgoing transaction
//	Error            -> Handler.OnReceivedError
//
// A handler that refuses a unit gets an Error packet sent back instead of a
// response. Outgoing transactions succeed when every page is acknowledged
// and time out on Sweep otherwise; nothing is retransmitted.
//
// AutoGate runs Process on its own goroutine, sleeping a short idle interval
// whenever a pass found nothing to do:
//
//	g := gate.NewAutoGate(hub, engine, handler, gate.Config{})
//	g.Start()
//	defer g.Close()
//	sn, err := g.SendMessage(payload, remote)
package gate
