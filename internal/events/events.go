// Package events defines the tagged-variant event families that flow
// between transports, the gateway, and the engine. Every family is
// consumed and produced only as values — no raw sockets or framing
// leaks past the bus boundary. A single Kind tag per family drives
// dispatch tables instead of inheritance: consumers switch on Kind, new
// variants don't ripple through a class hierarchy.
package events

import "ambonmud/internal/ids"

// InboundKind tags an InboundEvent variant.
type InboundKind int

const (
	KindConnected InboundKind = iota
	KindDisconnected
	KindLineReceived
	KindGmcpReceived
)

// Inbound is a tagged-variant event flowing from a transport toward
// the engine. Only the fields relevant to Kind are populated.
type Inbound struct {
	Kind      InboundKind
	SessionID ids.SessionID

	DefaultAnsi bool   // Connected
	Reason      string // Disconnected
	Line        string // LineReceived
	Package     string // GmcpReceived
	JSONPayload string // GmcpReceived
}

func Connected(session ids.SessionID, defaultAnsi bool) Inbound {
	return Inbound{Kind: KindConnected, SessionID: session, DefaultAnsi: defaultAnsi}
}

func Disconnected(session ids.SessionID, reason string) Inbound {
	return Inbound{Kind: KindDisconnected, SessionID: session, Reason: reason}
}

func LineReceived(session ids.SessionID, line string) Inbound {
	return Inbound{Kind: KindLineReceived, SessionID: session, Line: line}
}

func GmcpReceived(session ids.SessionID, pkg, jsonPayload string) Inbound {
	return Inbound{Kind: KindGmcpReceived, SessionID: session, Package: pkg, JSONPayload: jsonPayload}
}

// OutboundKind tags an OutboundEvent variant.
type OutboundKind int

const (
	KindSendText OutboundKind = iota
	KindSendInfo
	KindSendError
	KindSendPrompt
	KindShowLoginScreen
	KindSetAnsi
	KindClearScreen
	KindClose
	KindSessionRedirect
	KindGmcpData
)

// Outbound is a tagged-variant event flowing from the engine toward a
// transport by way of the rendering boundary, which collapses
// consecutive SendPrompt events for the same session into one.
type Outbound struct {
	Kind      OutboundKind
	SessionID ids.SessionID

	Text            string // SendText / SendInfo / SendError
	AnsiEnabled     bool   // SetAnsi
	CloseReason     string // Close
	TargetEngineID  string // SessionRedirect
	GmcpPackage     string // GmcpData
	GmcpJSON        string // GmcpData
}

func SendText(session ids.SessionID, text string) Outbound {
	return Outbound{Kind: KindSendText, SessionID: session, Text: text}
}

func SendInfo(session ids.SessionID, text string) Outbound {
	return Outbound{Kind: KindSendInfo, SessionID: session, Text: text}
}

func SendError(session ids.SessionID, text string) Outbound {
	return Outbound{Kind: KindSendError, SessionID: session, Text: text}
}

func SendPrompt(session ids.SessionID) Outbound {
	return Outbound{Kind: KindSendPrompt, SessionID: session}
}

func ShowLoginScreen(session ids.SessionID) Outbound {
	return Outbound{Kind: KindShowLoginScreen, SessionID: session}
}

func SetAnsi(session ids.SessionID, enabled bool) Outbound {
	return Outbound{Kind: KindSetAnsi, SessionID: session, AnsiEnabled: enabled}
}

func ClearScreen(session ids.SessionID) Outbound {
	return Outbound{Kind: KindClearScreen, SessionID: session}
}

func Close(session ids.SessionID, reason string) Outbound {
	return Outbound{Kind: KindClose, SessionID: session, CloseReason: reason}
}

func SessionRedirect(session ids.SessionID, targetEngineID string) Outbound {
	return Outbound{Kind: KindSessionRedirect, SessionID: session, TargetEngineID: targetEngineID}
}

func GmcpData(session ids.SessionID, pkg, json string) Outbound {
	return Outbound{Kind: KindGmcpData, SessionID: session, GmcpPackage: pkg, GmcpJSON: json}
}

// IsPrompt reports whether this event is a SendPrompt, used by the
// rendering boundary to coalesce consecutive prompts for a session.
func (o Outbound) IsPrompt() bool { return o.Kind == KindSendPrompt }

// StreamFrame is the union carried over a gateway<->engine stream:
// exactly one of Inbound/Outbound is set. The gateway sends Inbound
// frames and consumes Outbound frames; the engine does the reverse.
// Both sides share one bidirectional stream, so the frame type has to
// carry either direction.
type StreamFrame struct {
	Inbound  *Inbound
	Outbound *Outbound
}

func InboundFrame(ev Inbound) StreamFrame   { return StreamFrame{Inbound: &ev} }
func OutboundFrame(ev Outbound) StreamFrame { return StreamFrame{Outbound: &ev} }

// InterEngineKind tags an InterEngineMessage variant.
type InterEngineKind int

const (
	KindPlayerHandoff InterEngineKind = iota
	KindHandoffAck
	KindTellMessage
	KindGlobalBroadcast
	KindWhoRequest
	KindWhoResponse
	KindSessionRedirectMsg
	KindTransferRequest
	KindKickRequest
)

// InterEngineMessage is a tagged-variant message exchanged between
// engine shards (and, for SessionRedirectMsg, with the gateway) over
// the inter-engine bus. Envelopes carrying these are signed; see
// internal/bus.
type InterEngineMessage struct {
	Kind InterEngineKind

	SenderEngineID string
	TargetEngineID string
	Zone           string

	// PlayerHandoff / HandoffAck
	HandoffID     string
	PlayerPayload []byte // serialized handoff payload, opaque here

	// TellMessage / GlobalBroadcast
	FromName string
	ToName   string
	Text     string

	// WhoRequest / WhoResponse
	RequestID   string
	PlayerNames []string

	// SessionRedirectMsg
	SessionID ids.SessionID

	// TransferRequest / KickRequest
	TargetPlayerName string
	TargetRoomID     string
}
