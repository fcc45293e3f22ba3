package stubserver

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
)

type toggleRequest struct {
	Completed bool `json:"completed"`
}

type addPartnerRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

func (s *Server) toggleCompletion(c *gin.Context) {
	userID := callerID(c)
	habitID := c.Param("id")
	dateKey := c.Param("date")

	if _, err := domain.ParseDay(dateKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	record, ok := s.habits[habitID]
	if !ok || record.ownerID != userID {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "habit not found"})
		return
	}

	if record.habit.Completions == nil {
		record.habit.Completions = domain.CompletionMap{}
	}
	record.habit.Completions[dateKey] = req.Completed
	record.habit.StreakCount = domain.Streak(record.habit.Completions, time.Now())

	// Everyone who has this user as a partner gets the change ping.
	var watchers []string
	for id, list := range s.partners {
		if slices.Contains(list, userID) {
			watchers = append(watchers, id)
		}
	}
	s.mu.Unlock()

	for _, id := range watchers {
		s.broadcast(id, domain.EventHabitUpdate, gin.H{"habit_id": habitID})
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) addPartner(c *gin.Context) {
	userID := callerID(c)

	var req addPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	var found string
	for id, u := range s.users {
		if u.Username == req.Identifier || u.Email == req.Identifier {
			found = id
			break
		}
	}
	if found == "" || found == userID {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if slices.Contains(s.partners[userID], found) {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "already partners"})
		return
	}
	s.partners[userID] = append(s.partners[userID], found)
	s.mu.Unlock()

	// The response body carries no list; the update rides the stream.
	s.pushPartners(userID)
	c.Status(http.StatusCreated)
}

func (s *Server) removePartner(c *gin.Context) {
	userID := callerID(c)
	partnerID := c.Param("id")

	s.mu.Lock()
	list := s.partners[userID]
	idx := slices.Index(list, partnerID)
	if idx < 0 {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
		return
	}
	s.partners[userID] = slices.Delete(list, idx, idx+1)
	s.mu.Unlock()

	s.pushPartners(userID)
	c.Status(http.StatusNoContent)
}

func (s *Server) partnerHabits(c *gin.Context) {
	userID := callerID(c)
	partnerID := c.Param("id")

	s.mu.Lock()
	if !slices.Contains(s.partners[userID], partnerID) {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "partner not found"})
		return
	}

	habits := make([]domain.Habit, 0)
	for _, record := range s.habits {
		if record.ownerID == partnerID {
			h := record.habit
			h.Completions = record.habit.Completions.Clone()
			habits = append(habits, h)
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, habits)
}

func (s *Server) copyHabit(c *gin.Context) {
	userID := callerID(c)
	habitID := c.Param("id")

	s.mu.Lock()
	record, ok := s.habits[habitID]
	if !ok || !slices.Contains(s.partners[userID], record.ownerID) {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "habit not found"})
		return
	}

	// Copies start fresh: name and settings carry over, history does not.
	copied := domain.Habit{
		ID:          uuid.NewString(),
		Name:        record.habit.Name,
		Description: record.habit.Description,
		Colour:      record.habit.Colour,
		Frequency:   record.habit.Frequency,
		Completions: domain.CompletionMap{},
	}
	s.habits[copied.ID] = &habitRecord{ownerID: userID, habit: copied}
	s.mu.Unlock()

	c.JSON(http.StatusCreated, copied)
}
