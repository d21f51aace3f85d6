package host

import "sync"

// ChildKind names the sub-interface a child server exposes.
type ChildKind int

const (
	ChildLECentral ChildKind = iota
	ChildLEPeripheral
	ChildGattServer
	ChildProfile
)

func (k ChildKind) String() string {
	switch k {
	case ChildLECentral:
		return "le.central"
	case ChildLEPeripheral:
		return "le.peripheral"
	case ChildGattServer:
		return "gatt.server"
	case ChildProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// ChildServer is one per-request sub-interface binding. Its lifetime is
// independent of the other children: closing it, or an error on its
// client connection, removes only this binding. Closing the parent
// server releases all of them.
type ChildServer struct {
	srv  *Server
	id   uint64
	kind ChildKind
	once sync.Once
}

// Kind reports which sub-interface this binding serves.
func (c *ChildServer) Kind() ChildKind { return c.kind }

// ID is the binding's registration key, unique within the parent.
func (c *ChildServer) ID() uint64 { return c.id }

// Close unregisters the binding from the parent server.
func (c *ChildServer) Close() {
	c.release()
	if c.srv != nil {
		c.srv.removeChild(c.id)
	}
}

// Fail tears the binding down after a connection error.
func (c *ChildServer) Fail(err error) {
	logger.Warnf("%s server %d: connection error: %v", c.kind, c.id, err)
	c.Close()
}

func (c *ChildServer) release() {
	c.once.Do(func() {
		logger.Debugf("%s server %d released", c.kind, c.id)
	})
}

func (s *Server) bindChild(kind ChildKind) (*ChildServer, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed()
	}
	s.nextChildID++
	c := &ChildServer{srv: s, id: s.nextChildID, kind: kind}
	s.children[c.id] = c
	s.mu.Unlock()

	logger.Debugf("bound %s server %d", kind, c.id)
	return c, nil
}

func (s *Server) removeChild(id uint64) {
	s.mu.Lock()
	delete(s.children, id)
	s.mu.Unlock()
}

// RequestLowEnergyCentral binds an LE central sub-interface.
func (s *Server) RequestLowEnergyCentral() (*ChildServer, error) {
	return s.bindChild(ChildLECentral)
}

// RequestLowEnergyPeripheral binds an LE peripheral sub-interface.
func (s *Server) RequestLowEnergyPeripheral() (*ChildServer, error) {
	return s.bindChild(ChildLEPeripheral)
}

// RequestGattServer binds a GATT server sub-interface.
func (s *Server) RequestGattServer() (*ChildServer, error) {
	return s.bindChild(ChildGattServer)
}

// RequestProfile binds a BR/EDR profile sub-interface.
func (s *Server) RequestProfile() (*ChildServer, error) {
	return s.bindChild(ChildProfile)
}

// Children reports the number of live sub-interface bindings.
func (s *Server) Children() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}
