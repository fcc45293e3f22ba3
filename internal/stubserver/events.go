package stubserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
)

type frame struct {
	event string
	data  []byte
}

// events serves the partner push channel. Every new connection gets a
// full initial_partners snapshot first, which is what lets clients
// reconnect from scratch instead of resuming.
func (s *Server) events(c *gin.Context) {
	userID := callerID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sub := make(chan frame, 16)
	s.subscribe(userID, sub)
	defer s.unsubscribe(userID, sub)

	writeFrame(c, flusher, frame{
		event: domain.EventInitialPartners,
		data:  s.partnersPayload(userID),
	})

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-sub:
			writeFrame(c, flusher, f)
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeFrame(c *gin.Context, flusher http.Flusher, f frame) {
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", f.event, f.data)
	flusher.Flush()
}

func (s *Server) subscribe(userID string, sub chan frame) {
	s.mu.Lock()
	s.subs[userID] = append(s.subs[userID], sub)
	s.mu.Unlock()
}

func (s *Server) unsubscribe(userID string, sub chan frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := s.subs[userID]
	for i, ch := range channels {
		if ch == sub {
			s.subs[userID] = append(channels[:i], channels[i+1:]...)
			break
		}
	}
}

// pushPartners sends the caller's full partner list as a
// partners_update frame to all of their open streams.
func (s *Server) pushPartners(userID string) {
	s.broadcastRaw(userID, frame{
		event: domain.EventPartnersUpdate,
		data:  s.partnersPayload(userID),
	})
}

func (s *Server) broadcast(userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Stub broadcast: encoding %s payload: %v", event, err)
		return
	}
	s.broadcastRaw(userID, frame{event: event, data: data})
}

func (s *Server) broadcastRaw(userID string, f frame) {
	s.mu.Lock()
	channels := append([]chan frame(nil), s.subs[userID]...)
	s.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- f:
		default:
			log.Printf("Stub stream for %s is backed up, dropping %s", userID, f.event)
		}
	}
}

func (s *Server) partnersPayload(userID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	partners := make([]domain.Partner, 0)
	for _, id := range s.partners[userID] {
		if p, ok := s.users[id]; ok {
			partners = append(partners, p)
		}
	}

	data, err := json.Marshal(partners)
	if err != nil {
		log.Printf("Stub stream: encoding partner list: %v", err)
		return []byte("[]")
	}
	return data
}
