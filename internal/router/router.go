// Package router tracks connected clients, the users they are logged in as,
// and the topics they subscribe to, and fans published server commands out
// to subscribers. It is the sole owner of this state; the lock is never held
// across I/O — messages go onto per-client send queues drained by each
// connection's writer.
package router

import (
	"log"
	"sync"

	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
	"github.com/gameroom/backend/internal/protocol"
)

type topicKind int

const (
	globalTopic topicKind = iota
	userPrivateTopic
	userTopic
	gameTopic
)

// Topic is a routing key clients subscribe to.
type Topic struct {
	kind topicKind
	user models.UserID
	game models.GameID
}

// Global addresses every connected client.
func Global() Topic { return Topic{kind: globalTopic} }

// UserPrivate addresses the clients logged in as a user. It cannot be
// subscribed to directly; only AddAsUser grants it.
func UserPrivate(id models.UserID) Topic { return Topic{kind: userPrivateTopic, user: id} }

// User addresses clients interested in events about a user.
func User(id models.UserID) Topic { return Topic{kind: userTopic, user: id} }

// Game addresses clients observing a game.
func Game(id models.GameID) Topic { return Topic{kind: gameTopic, game: id} }

// SendQueueSize bounds each client's send queue. A client that falls this
// far behind is dropped rather than allowed to pressurize publishers.
const SendQueueSize = 64

// ClientMap is the process-wide registry of connections.
type ClientMap struct {
	mu sync.Mutex
	// per-client send queue of rendered frames
	channels map[string]chan string
	// topic -> subscribed client addrs
	topics map[Topic]map[string]struct{}
	// client addr -> logged in user
	users map[string]models.UserID
	// client addr -> negotiated protocol version
	versions map[string]int
}

func NewClientMap() *ClientMap {
	return &ClientMap{
		channels: make(map[string]chan string),
		topics:   make(map[Topic]map[string]struct{}),
		users:    make(map[string]models.UserID),
		versions: make(map[string]int),
	}
}

// InsertClient registers a connection and its send queue.
func (m *ClientMap) InsertClient(addr string, tx chan string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[addr] = tx
}

// SetVersion records the protocol version negotiated on a connection.
func (m *ClientMap) SetVersion(addr string, version int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[addr] = version
}

// Version reports a connection's negotiated protocol version (1 until
// changed).
func (m *ClientMap) Version(addr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version(addr)
}

func (m *ClientMap) version(addr string) int {
	if v, ok := m.versions[addr]; ok {
		return v
	}
	return protocol.V1
}

// AddToTopic subscribes a client to a topic. UserPrivate topics are refused;
// they are only reachable through AddAsUser, so a client cannot listen in on
// another user's private stream by guessing an id.
func (m *ClientMap) AddToTopic(topic Topic, addr string) {
	if topic.kind == userPrivateTopic {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribe(topic, addr)
}

func (m *ClientMap) subscribe(topic Topic, addr string) {
	set, ok := m.topics[topic]
	if !ok {
		set = make(map[string]struct{})
		m.topics[topic] = set
	}
	set[addr] = struct{}{}
}

// RemoveFromTopic unsubscribes a client from a topic.
func (m *ClientMap) RemoveFromTopic(topic Topic, addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.topics[topic]; ok {
		delete(set, addr)
	}
}

// UserFor reports the user a client is logged in as.
func (m *ClientMap) UserFor(addr string) (models.UserID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.users[addr]
	return id, ok
}

// AddAsUser logs a client in as a user, replacing any prior login and moving
// its UserPrivate subscription accordingly.
func (m *ClientMap) AddAsUser(userID models.UserID, addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeAsUser(addr)
	m.subscribe(UserPrivate(userID), addr)
	m.users[addr] = userID
}

// RemoveAsUser logs a client out.
func (m *ClientMap) RemoveAsUser(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeAsUser(addr)
}

func (m *ClientMap) removeAsUser(addr string) {
	if old, ok := m.users[addr]; ok {
		if set, ok := m.topics[UserPrivate(old)]; ok {
			delete(set, addr)
		}
	}
	delete(m.users, addr)
}

// RemoveClient purges a disconnected client from the map and every topic.
func (m *ClientMap) RemoveClient(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[addr]; ok {
		delete(m.channels, addr)
		close(ch)
	}
	for _, set := range m.topics {
		delete(set, addr)
	}
	delete(m.users, addr)
	delete(m.versions, addr)
}

// Send renders a command for the client's protocol version and queues it.
// A client whose queue is full is dropped; its writer will notice the closed
// queue and shut the connection down.
func (m *ClientMap) Send(addr string, cmd protocol.ServerCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(addr, cmd)
}

func (m *ClientMap) send(addr string, cmd protocol.ServerCommand) error {
	ch, ok := m.channels[addr]
	if !ok {
		return errs.ErrNoSuchConnectedClient
	}
	msg, ok := cmd.Encode(m.version(addr))
	if !ok {
		return nil
	}
	select {
	case ch <- msg:
	default:
		log.Printf("[WS] send queue full for %s, dropping client", addr)
		m.drop(addr)
	}
	return nil
}

func (m *ClientMap) drop(addr string) {
	if ch, ok := m.channels[addr]; ok {
		delete(m.channels, addr)
		close(ch)
	}
	for _, set := range m.topics {
		delete(set, addr)
	}
	delete(m.users, addr)
	delete(m.versions, addr)
}

// Publish renders a command once per subscriber version and fans it out to
// every subscriber of the topic.
func (m *ClientMap) Publish(topic Topic, cmd protocol.ServerCommand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.topics[topic]
	if !ok {
		return
	}
	// send may drop an overflowing client, which mutates the set; iterate a
	// snapshot
	addrs := make([]string, 0, len(set))
	for addr := range set {
		addrs = append(addrs, addr)
	}
	for _, addr := range addrs {
		if err := m.send(addr, cmd); err != nil {
			log.Printf("[WS] publish to %s failed: %v", addr, err)
		}
	}
}
