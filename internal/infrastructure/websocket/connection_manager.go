package websocket

import (
	"auction-engine/pkg/logger"
	"sync"
)

// ConnectionManager tracks open gateway connections so they can be counted
// per auction and closed together on shutdown. Replies always go back on the
// connection that sent the request; nothing is broadcast.
type ConnectionManager struct {
	connections map[string]map[*Connection]struct{} // auctionID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[*Connection]struct{}),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(conn *Connection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[conn.AuctionID()] == nil {
		cm.connections[conn.AuctionID()] = make(map[*Connection]struct{})
	}
	cm.connections[conn.AuctionID()][conn] = struct{}{}

	cm.log.Info("Connection registered", "customer_id", conn.CustomerID(), "auction_id", conn.AuctionID())
}

func (cm *ConnectionManager) UnregisterConnection(conn *Connection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[conn.AuctionID()]; exists {
		delete(auctionConns, conn)
		if len(auctionConns) == 0 {
			delete(cm.connections, conn.AuctionID())
		}
	}

	cm.log.Info("Connection unregistered", "customer_id", conn.CustomerID(), "auction_id", conn.AuctionID())
}

func (cm *ConnectionManager) CountForAuction(auctionID string) int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections[auctionID])
}

// CloseAll closes every tracked connection. Their read loops then exit and
// unregister themselves.
func (cm *ConnectionManager) CloseAll() {
	cm.mutex.RLock()
	var all []*Connection
	for _, auctionConns := range cm.connections {
		for conn := range auctionConns {
			all = append(all, conn)
		}
	}
	cm.mutex.RUnlock()

	for _, conn := range all {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "customer_id", conn.CustomerID(),
				"auction_id", conn.AuctionID(), "error", err)
		}
	}
	cm.log.Info("Closed gateway connections", "count", len(all))
}
