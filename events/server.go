package events

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/queue"
)

// ErrServerShuttingDown is returned when an operation is attempted while the
// event server is shutting down.
var ErrServerShuttingDown = errors.New("event server shutting down")

// Client is a single subscription to the event server. Every client
// independently receives every event published after it subscribed.
type Client struct {
	cancel func()

	updates *queue.ConcurrentQueue
	quit    chan struct{}
}

// Updates returns the channel the client's events are delivered on. The
// concrete items are always NodeEvent implementations.
func (c *Client) Updates() <-chan interface{} {
	return c.updates.ChanOut()
}

// Quit is closed once the server decides to no longer deliver events to this
// client.
func (c *Client) Quit() <-chan struct{} {
	return c.quit
}

// Cancel removes the client's subscription from the server.
func (c *Client) Cancel() {
	c.cancel()
}

// Server fans node events out to an arbitrary number of subscribed clients.
// Each client is backed by its own concurrent queue, so a slow consumer
// buffers instead of blocking the publisher or its sibling subscribers.
type Server struct {
	clientCounter uint64 // To be used atomically.

	started uint32 // To be used atomically.
	stopped uint32 // To be used atomically.

	clients       map[uint64]*Client
	clientUpdates chan *clientUpdate

	events chan NodeEvent

	quit chan struct{}
	wg   sync.WaitGroup
}

// clientUpdate is the internal message used to register or cancel a client
// subscription on the event handler goroutine.
type clientUpdate struct {
	cancel   bool
	clientID uint64
	client   *Client
}

// NewServer returns an event server that is ready to be started.
func NewServer() *Server {
	return &Server{
		clients:       make(map[uint64]*Client),
		clientUpdates: make(chan *clientUpdate),
		events:        make(chan NodeEvent),
		quit:          make(chan struct{}),
	}
}

// Start launches the event handler, making the server ready to accept
// subscriptions and events.
func (s *Server) Start() error {
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return nil
	}

	s.wg.Add(1)
	go s.eventHandler()

	return nil
}

// Stop shuts down the server and cancels all active subscriptions.
func (s *Server) Stop() error {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return nil
	}

	close(s.quit)
	s.wg.Wait()

	return nil
}

// Subscribe registers a new client that will receive every event published
// from this point on.
func (s *Server) Subscribe() (*Client, error) {
	clientID := atomic.AddUint64(&s.clientCounter, 1)

	client := &Client{
		updates: queue.NewConcurrentQueue(20),
		quit:    make(chan struct{}),
		cancel: func() {
			select {
			case s.clientUpdates <- &clientUpdate{
				cancel:   true,
				clientID: clientID,
			}:
			case <-s.quit:
			}
		},
	}

	select {
	case s.clientUpdates <- &clientUpdate{
		clientID: clientID,
		client:   client,
	}:
	case <-s.quit:
		return nil, ErrServerShuttingDown
	}

	return client, nil
}

// SendEvent publishes the passed event to all currently subscribed clients.
func (s *Server) SendEvent(event NodeEvent) error {
	select {
	case s.events <- event:
		return nil
	case <-s.quit:
		return ErrServerShuttingDown
	}
}

// eventHandler is the main goroutine of the server. It owns the client set
// and forwards published events to every active client.
//
// NOTE: MUST be run as a goroutine.
func (s *Server) eventHandler() {
	defer s.wg.Done()

	for {
		select {
		case update := <-s.clientUpdates:
			clientID := update.clientID

			if update.cancel {
				client, ok := s.clients[clientID]
				if ok {
					client.updates.Stop()
					close(client.quit)
					delete(s.clients, clientID)
				}

				continue
			}

			update.client.updates.Start()
			s.clients[clientID] = update.client

		case event := <-s.events:
			for _, client := range s.clients {
				select {
				case client.updates.ChanIn() <- event:
				case <-client.quit:
				case <-s.quit:
					return
				}
			}

		case <-s.quit:
			for _, client := range s.clients {
				client.updates.Stop()
				close(client.quit)
			}
			return
		}
	}
}
