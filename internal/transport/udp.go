// Package transport implements the datagram transport collaborator: a UDP
// listener that decodes envelopes, applies per-source-address rate limiting,
// and forwards decoded messages to the engine (SPEC_FULL §1, §5). The
// wire-level binary/compressed codec is out of scope; envelopes carry their
// payload as JSON (SPEC_FULL's Non-goals).
package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"arenaserver/internal/protocol"
)

// maxDatagramSize bounds a single inbound packet; anything larger is
// dropped and the source is told MessageTooLarge rather than read partially.
const maxDatagramSize = 4096

// addrRateLimit is the token-bucket budget per source address: generous
// enough for 60Hz input plus the occasional chat/loot/use message, tight
// enough that a flood from one address can't starve the listener goroutine.
const (
	addrRateLimit = 120
	addrBurst     = 40
)

const limiterCleanupInterval = 5 * time.Minute
const limiterIdleTimeout = 10 * time.Minute

// Dispatcher is the narrow inbound half of the engine collaborator this
// transport forwards decoded messages to.
type Dispatcher interface {
	HandleConnect(payload protocol.ConnectPayload) (protocol.ConnectedPayload, *protocol.GameError)
	HandleReconnect(payload protocol.ReconnectPayload) protocol.ReconnectResponsePayload
	HandleHeartbeat(playerID string)
	HandlePing(payload protocol.PingPayload) protocol.PongPayload
	HandlePlayerInput(playerID string, payload protocol.PlayerInputPayload) *protocol.GameError
	HandleLootGrab(playerID string, payload protocol.LootGrabPayload) *protocol.GameError
	HandleUseItem(playerID string, payload protocol.UseItemPayload) *protocol.GameError
	HandleExtraction(playerID string, payload protocol.ExtractionPayload) *protocol.GameError
	HandleChat(playerID string, payload protocol.ChatPayload) *protocol.GameError
	HandleMessageAck(playerID string, payload protocol.MessageAckPayload)
	HandleDisconnect(playerID string)
	HandleGracefulDisconnect(playerID string)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Transport is a UDP-backed implementation of engine.Sender plus the
// listener loop that feeds a Dispatcher.
type Transport struct {
	conn       *net.UDPConn
	dispatcher Dispatcher

	mu           sync.RWMutex
	addrByPlayer map[string]*net.UDPAddr
	playerByAddr map[string]string

	limiters sync.Map // addr string -> *limiterEntry

	stopChan chan struct{}
	stopOnce sync.Once
}

// Listen opens the UDP socket on port and starts the rate-limiter cleanup
// loop. Call Serve(dispatcher) to begin reading datagrams.
func Listen(port int) (*Transport, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on port %d: %w", port, err)
	}

	t := &Transport{
		conn:         conn,
		addrByPlayer: make(map[string]*net.UDPAddr),
		playerByAddr: make(map[string]string),
		stopChan:     make(chan struct{}),
	}
	go t.cleanupLoop()
	return t, nil
}

// Serve reads datagrams until Close is called, dispatching each to d. Runs
// on the caller's goroutine; callers typically `go t.Serve(d)`.
func (t *Transport) Serve(d Dispatcher) {
	t.dispatcher = d
	buf := make([]byte, maxDatagramSize)

	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
				log.Printf("transport: read error: %v", err)
				continue
			}
		}
		t.handleDatagram(addr, buf[:n])
	}
}

func (t *Transport) handleDatagram(addr *net.UDPAddr, data []byte) {
	if !t.allow(addr) {
		t.replyError(addr, "", protocol.ErrRateLimited, "too many messages")
		return
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.replyError(addr, "", protocol.ErrUnknownType, "malformed envelope")
		return
	}

	playerID := env.PlayerID
	if playerID == "" {
		t.mu.RLock()
		playerID = t.playerByAddr[addr.String()]
		t.mu.RUnlock()
	}

	switch env.Type {
	case protocol.TypeConnect:
		var p protocol.ConnectPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.replyError(addr, "", protocol.ErrUnknownType, "malformed connect payload")
			return
		}
		resp, gerr := t.dispatcher.HandleConnect(p)
		if gerr != nil {
			t.replyError(addr, "", gerr.Code, gerr.Message)
			return
		}
		t.register(resp.PlayerID, addr)
		t.replyJSON(addr, protocol.TypeConnected, resp)

	case protocol.TypeReconnect:
		var p protocol.ReconnectPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.replyError(addr, "", protocol.ErrUnknownType, "malformed reconnect payload")
			return
		}
		resp := t.dispatcher.HandleReconnect(p)
		if resp.Success {
			t.register(resp.PlayerID, addr)
		}
		t.replyJSON(addr, protocol.TypeReconnectResponse, resp)

	case protocol.TypeHeartbeat:
		t.dispatcher.HandleHeartbeat(playerID)
		t.replyJSON(addr, protocol.TypeHeartbeatAck, struct{}{})

	case protocol.TypePing:
		var p protocol.PingPayload
		json.Unmarshal(env.Data, &p)
		t.replyJSON(addr, protocol.TypePong, t.dispatcher.HandlePing(p))

	case protocol.TypePlayerInput:
		var p protocol.PlayerInputPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if gerr := t.dispatcher.HandlePlayerInput(playerID, p); gerr != nil {
			t.replyError(addr, playerID, gerr.Code, gerr.Message)
		}

	case protocol.TypeLootGrab:
		var p protocol.LootGrabPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if gerr := t.dispatcher.HandleLootGrab(playerID, p); gerr != nil {
			t.replyError(addr, playerID, gerr.Code, gerr.Message)
		}

	case protocol.TypeUseItem:
		var p protocol.UseItemPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if gerr := t.dispatcher.HandleUseItem(playerID, p); gerr != nil {
			t.replyError(addr, playerID, gerr.Code, gerr.Message)
		}

	case protocol.TypeExtraction:
		var p protocol.ExtractionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if gerr := t.dispatcher.HandleExtraction(playerID, p); gerr != nil {
			t.replyError(addr, playerID, gerr.Code, gerr.Message)
		}

	case protocol.TypeChat:
		var p protocol.ChatPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if gerr := t.dispatcher.HandleChat(playerID, p); gerr != nil {
			t.replyError(addr, playerID, gerr.Code, gerr.Message)
		}

	case protocol.TypeMessageAck:
		var p protocol.MessageAckPayload
		json.Unmarshal(env.Data, &p)
		t.dispatcher.HandleMessageAck(playerID, p)

	case protocol.TypeDisconnect:
		t.dispatcher.HandleGracefulDisconnect(playerID)
		t.unregister(playerID)

	default:
		t.replyError(addr, playerID, protocol.ErrUnknownType, string(env.Type))
	}
}

func (t *Transport) register(playerID string, addr *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addrByPlayer[playerID] = addr
	t.playerByAddr[addr.String()] = playerID
}

func (t *Transport) unregister(playerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if addr, ok := t.addrByPlayer[playerID]; ok {
		delete(t.playerByAddr, addr.String())
		delete(t.addrByPlayer, playerID)
	}
}

func (t *Transport) allow(addr *net.UDPAddr) bool {
	key := addr.String()
	v, _ := t.limiters.LoadOrStore(key, &limiterEntry{limiter: rate.NewLimiter(rate.Limit(addrRateLimit), addrBurst)})
	entry := v.(*limiterEntry)
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (t *Transport) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			t.limiters.Range(func(k, v interface{}) bool {
				if now.Sub(v.(*limiterEntry).lastSeen) > limiterIdleTimeout {
					t.limiters.Delete(k)
				}
				return true
			})
		case <-t.stopChan:
			return
		}
	}
}

// Send implements engine.Sender: look up playerID's current address and
// write the envelope as JSON. Returns an error if the player has no
// registered address (not yet connected, or disconnected).
func (t *Transport) Send(playerID string, env protocol.Envelope) error {
	t.mu.RLock()
	addr, ok := t.addrByPlayer[playerID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: no address registered for player %s", playerID)
	}
	return t.writeJSON(addr, env)
}

func (t *Transport) replyJSON(addr *net.UDPAddr, msgType protocol.MessageType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	t.writeJSON(addr, protocol.Envelope{Type: msgType, Data: data, Timestamp: time.Now()})
}

func (t *Transport) replyError(addr *net.UDPAddr, playerID string, code protocol.ErrorCode, message string) {
	data, _ := json.Marshal(protocol.ErrorPayload{Code: code, Message: message})
	t.writeJSON(addr, protocol.Envelope{Type: protocol.TypeError, PlayerID: playerID, Data: data, Timestamp: time.Now()})
}

func (t *Transport) writeJSON(addr *net.UDPAddr, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = t.conn.WriteToUDP(data, addr)
	return err
}

// Close stops the listener and the rate-limiter cleanup loop.
func (t *Transport) Close() error {
	t.stopOnce.Do(func() { close(t.stopChan) })
	return t.conn.Close()
}
